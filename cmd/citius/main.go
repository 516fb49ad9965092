// Package main provides the entry point for the citius CLI.
//
// citius searches the Citius insolvency notices portal by NIF/NIPC or by
// designation, walks every result page, loads the full creditor list of
// each notice and exports the records as CSV and JSON.
//
// Usage:
//
//	citius search --nif 515755230
//	citius search --designacao "Empresa Exemplo" --data-inicio 2024-01-01
//
// See --help for all available options.
package main

func main() {
	Execute()
}
