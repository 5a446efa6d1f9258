package models

type Category struct {
	ID   uint64 `json:"idCategoriaInstrumento"`
	Name string `json:"denominacion"`
}
