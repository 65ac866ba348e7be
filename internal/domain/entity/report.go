package entity

// ReportDocument содержимое отчёта до рендеринга
type ReportDocument struct {
	Title  string
	Rating string
	Lines  []string
}
