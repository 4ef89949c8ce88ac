package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	// Catalog
	&Category{},
	&Product{},
	// CRM
	&Client{},
	// Quotes
	&GlobalVars{},
	&Quote{},
	&QuoteItem{},
}
