package ncm

// DefaultEntries is the built-in pet-sector table used when no reference file is configured.
var DefaultEntries = []ReferenceEntry{
	{DisplayForm: "2309.90.10", Category: "Alimentação", ExampleDescription: "Rações para cães e gatos"},
	{DisplayForm: "2309.90.30", Category: "Alimentação", ExampleDescription: "Rações para equinos"},
	{DisplayForm: "2309.90.90", Category: "Alimentação", ExampleDescription: "Outras preparações para alimentação animal", Notes: "Inclui ração para peixes e aves"},
	{DisplayForm: "3004.90.99", Category: "Medicamentos", ExampleDescription: "Medicamentos veterinários e antibióticos"},
	{DisplayForm: "3004.90.39", Category: "Medicamentos", ExampleDescription: "Medicamentos veterinários (outros)"},
	{DisplayForm: "3004.90.59", Category: "Medicamentos", ExampleDescription: "Medicamentos veterinários (outros)"},
	{DisplayForm: "3002.30.00", Category: "Medicamentos", ExampleDescription: "Vacinas veterinárias"},
	{DisplayForm: "3808.94.90", Category: "Higiene", ExampleDescription: "Antipulgas e antiparasitários"},
	{DisplayForm: "3305.10.00", Category: "Higiene", ExampleDescription: "Shampoos"},
	{DisplayForm: "2505.10.00", Category: "Higiene", ExampleDescription: "Areia sanitária", Notes: "Granulado não deve usar 6802.93.90"},
	{DisplayForm: "9018.31.00", Category: "Clínica", ExampleDescription: "Seringas"},
	{DisplayForm: "4015.11.00", Category: "Clínica", ExampleDescription: "Luvas de látex"},
	{DisplayForm: "9025.11.00", Category: "Clínica", ExampleDescription: "Termômetros"},
	{DisplayForm: "4205.00.00", Category: "Acessórios", ExampleDescription: "Coleiras e acessórios de couro"},
	{DisplayForm: "9404.90.00", Category: "Acessórios", ExampleDescription: "Camas e almofadas pet"},
	{DisplayForm: "3926.90.90", Category: "Acessórios", ExampleDescription: "Brinquedos pet de plástico", Notes: "9503.00.10 é para brinquedos infantis"},
	{DisplayForm: "4016.99.90", Category: "Acessórios", ExampleDescription: "Brinquedos pet de borracha"},
	{DisplayForm: "7010.90.00", Category: "Aquarismo", ExampleDescription: "Aquários de vidro"},
	{DisplayForm: "8421.23.00", Category: "Aquarismo", ExampleDescription: "Filtros"},
}

// DefaultReference returns a Reference built from DefaultEntries.
func DefaultReference() *Reference {
	return NewReference(DefaultEntries)
}
