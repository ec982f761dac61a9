package models

// ChoiceSet is an ordered closed list of accepted values.
type ChoiceSet []Choice

// Has reports whether value belongs to the set.
func (s ChoiceSet) Has(value string) bool {
	for _, c := range s {
		if c.Value == value {
			return true
		}
	}
	return false
}

// Label returns the label for value, or value itself when unknown.
func (s ChoiceSet) Label(value string) string {
	for _, c := range s {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}

// Values lists the accepted values in order.
func (s ChoiceSet) Values() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, c.Value)
	}
	return out
}

var (
	SmartCameraChoices = ChoiceSet{
		{Value: "sim_com_dano", Label: "Sim e houve dano"},
		{Value: "sim_sem_dano", Label: "Sim, mas não houve dano"},
		{Value: "nao_faz_parte", Label: "A UE não faz parte do Smart Sampa"},
	}

	AggressorInfoChoices = ChoiceSet{
		{Value: string(AggressorInfoYes), Label: "Sim"},
		{Value: string(AggressorInfoNo), Label: "Não"},
	}

	PublicSecurityContactChoices = ChoiceSet{
		{Value: "sim_gcm", Label: "Sim, com GCM"},
		{Value: "sim_pm", Label: "Sim, com a PM"},
		{Value: "nao", Label: "Não"},
	}

	TriggeredProtocolChoices = ChoiceSet{
		{Value: "ameaca", Label: "Ameaça"},
		{Value: "alerta", Label: "Alerta"},
		{Value: "registro", Label: "Apenas para registro/ não se aplica"},
	}

	MotiveChoices = ChoiceSet{
		{Value: "bullying", Label: "Bullying"},
		{Value: "cyberbullying", Label: "Cyberbullying"},
		{Value: "atividades_ilicitas", Label: "Envolvimento com atividades ilícitas"},
		{Value: "homofobia", Label: "Homofobia"},
		{Value: "ideologias_extremistas", Label: "Ideologias extremistas (facista, nazista, discurso de ódio)"},
		{Value: "misoginia_machismo", Label: "Misoginia/machismo"},
		{Value: "racismo", Label: "Racismo"},
		{Value: "violencia_genero", Label: "Violência de Gênero"},
		{Value: "capacitismo", Label: "Capacitismo"},
		{Value: "relacoes_afetivas", Label: "Relações afetivas"},
		{Value: "uso_drogas", Label: "Uso de drogas"},
		{Value: "vinganca", Label: "Vingança"},
		{Value: "xenofobia", Label: "Xenofobia"},
		{Value: "outros", Label: "Outros"},
	}

	EthnicGroupChoices = ChoiceSet{
		{Value: "amarelo", Label: "Amarelo"},
		{Value: "branco", Label: "Branco"},
		{Value: "indigena", Label: "Indígena"},
		{Value: "preto", Label: "Preto"},
		{Value: "pardo", Label: "Pardo"},
	}

	GenderChoices = ChoiceSet{
		{Value: "mulher_trans", Label: "Mulher trans"},
		{Value: "homem_trans", Label: "Homem trans"},
		{Value: "mulher_cis", Label: "Mulher cisgênero"},
		{Value: "homem_cis", Label: "Homem cisgênero"},
		{Value: "pessoa_nao_binaria", Label: "Pessoa não binária"},
	}

	SchoolAttendanceChoices = ChoiceSet{
		{Value: "regularizada", Label: "Regularizada"},
		{Value: "inferior_75", Label: "Inferior a 75%"},
		{Value: "inferior_50", Label: "Inferior a 50%"},
		{Value: "sem_frequencia", Label: "Sem frequência"},
		{Value: "transferido_dre", Label: "Transferido para outra DRE"},
		{Value: "transferido_estadual", Label: "Transferido para a rede estadual"},
		{Value: "transferido_particular", Label: "Transferido para rede particular"},
		{Value: "nao_se_aplica", Label: "Não se aplica"},
	}

	SchoolStageChoices = ChoiceSet{
		{Value: "edu_infantil_cei", Label: "Educação infantil - CEI"},
		{Value: "edu_infantil_emei", Label: "Educação Infantil - EMEI"},
		{Value: "fundamental_alfabetizacao", Label: "Ensino fundamental - Ciclo de alfabetização"},
		{Value: "fundamental_autoral", Label: "Ensino fundamental - Ciclo Autoral"},
		{Value: "ensino_medio", Label: "Ensino médio"},
		{Value: "nao_se_aplica", Label: "Não se aplica"},
	}

	WeaponInvolvementChoices = ChoiceSet{
		{Value: "sim", Label: "Sim"},
		{Value: "nao", Label: "Não"},
	}

	ThreatModeChoices = ChoiceSet{
		{Value: "presencialmente", Label: "Presencialmente"},
		{Value: "virtualmente", Label: "Virtualmente"},
	}

	LearningCycleChoices = ChoiceSet{
		{Value: "alfabetizacao", Label: "Alfabetização (1º ao 3º ano)"},
		{Value: "interdisciplinar", Label: "Interdisciplinar (4º ao 6º ano)"},
		{Value: "autoral", Label: "Autoral (7º ao 9º ano)"},
	}
)
