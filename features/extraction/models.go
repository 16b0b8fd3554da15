package extraction

// ModelTypes is the catalogue of extraction models the engine serves,
// grouped roughly as the selector presents them: conversion, finance,
// expense, personal finance, logistics, and contract documents.
var ModelTypes = []string{
	"document_conversion",
	"image_to_text",
	"invoice",
	"purchase_order",
	"remittance_advice",
	"receipt",
	"hotel_invoice",
	"taxi_receipt",
	"utility_bill",
	"us_form_1040",
	"us_form_w2",
	"bank_statement",
	"personal_earnings_statement",
	"air_waybill",
	"arrival_notice",
	"bill_of_lading",
	"certificate_of_origin",
	"commercial_invoice",
	"customs_declaration",
	"dangerous_goods_declaration",
	"delivery_note",
	"international_consignment_note",
	"packing_list",
	"sea_waybill",
	"basic_contract",
	"brokerage_statement",
}

var modelTypeSet = func() map[string]bool {
	set := make(map[string]bool, len(ModelTypes))
	for _, m := range ModelTypes {
		set[m] = true
	}
	return set
}()

func ValidModelType(modelType string) bool {
	return modelTypeSet[modelType]
}
