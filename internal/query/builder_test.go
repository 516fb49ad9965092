package query

import (
	"errors"
	"testing"

	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/session"
)

// TestValidate tests criteria validation.
func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		criteria model.SearchCriteria
		field    string
	}{
		{"valid identifier", model.SearchCriteria{Identifier: "515755230"}, ""},
		{"valid name with dates", model.SearchCriteria{Name: "Exemplo", DateStart: "2023-01-01", DateEnd: "2023-12-31"}, ""},
		{"same start and end", model.SearchCriteria{Identifier: "1", DateStart: "2023-01-01", DateEnd: "2023-01-01"}, ""},
		{"only start date", model.SearchCriteria{Identifier: "1", DateStart: "2023-01-01"}, ""},
		{"court filter", model.SearchCriteria{Identifier: "1", Court: model.CourtExtinct}, ""},
		{"neither", model.SearchCriteria{}, "identifier"},
		{"blank", model.SearchCriteria{Identifier: "  ", Name: " "}, "identifier"},
		{"both", model.SearchCriteria{Identifier: "1", Name: "x"}, "identifier"},
		{"non-numeric identifier", model.SearchCriteria{Identifier: "PT515"}, "identifier"},
		{"arabic-indic digits", model.SearchCriteria{Identifier: "٥١٥٧٥٥٢٣٠"}, "identifier"},
		{"fullwidth digits", model.SearchCriteria{Identifier: "５１５７５５２３０"}, "identifier"},
		{"start after end", model.SearchCriteria{Identifier: "1", DateStart: "2024-01-02", DateEnd: "2024-01-01"}, "date_start"},
		{"bad start", model.SearchCriteria{Identifier: "1", DateStart: "01-01-2024"}, "date_start"},
		{"bad end", model.SearchCriteria{Identifier: "1", DateEnd: "2024-02-30"}, "date_end"},
		{"unknown court", model.SearchCriteria{Identifier: "1", Court: "antigos"}, "court"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tc.criteria)
			if tc.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

// TestSearch tests the search payload.
func TestSearch(t *testing.T) {
	t.Parallel()

	state := session.New([]session.Field{
		{Name: session.FieldViewState, Value: "vs"},
		{Name: session.FieldEventValidation, Value: "ev"},
		{Name: session.FieldViewStateGenerator, Value: "gen"},
	}, "sid")

	t.Run("identifier search with filters", func(t *testing.T) {
		t.Parallel()
		payload, err := Search(model.SearchCriteria{
			Identifier: " 515755230 ",
			DateStart:  "2023-01-05",
			DateEnd:    "2023-12-31",
			Court:      model.CourtNewStructure,
			ActGroup:   "3",
			Act:        "17",
		}, state)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := map[string]string{
			FieldSearchText:                 "515755230",
			FieldSearchType:                 "NIF/NIPC",
			FieldDateFrom:                   "05-01-2023",
			FieldDateTo:                     "31-12-2023",
			FieldCourts:                     "Nova Estrutura Judiciária",
			FieldActGroup:                   "3",
			FieldAct:                        "17",
			FieldDays:                       "Todos",
			FieldSubmit:                     "Pesquisar",
			session.FieldViewState:          "vs",
			session.FieldEventValidation:    "ev",
			session.FieldEventTarget:        "",
			session.FieldViewStateEncrypted: "",
		}
		for k, v := range expected {
			if got, ok := payload[k]; !ok || got != v {
				t.Errorf("%s: got %q (present=%v), expected %q", k, got, ok, v)
			}
		}
	})

	t.Run("name search omits optional filters", func(t *testing.T) {
		t.Parallel()
		payload, err := Search(model.SearchCriteria{Name: "Exemplo, Lda"}, state)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload[FieldSearchType] != "Designação" {
			t.Errorf("expected Designação, got %q", payload[FieldSearchType])
		}
		for _, k := range []string{FieldDateFrom, FieldDateTo, FieldCourts, FieldActGroup, FieldAct} {
			if _, ok := payload[k]; ok {
				t.Errorf("unexpected field %s", k)
			}
		}
	})

	t.Run("rejects inverted dates", func(t *testing.T) {
		t.Parallel()
		_, err := Search(model.SearchCriteria{Identifier: "1", DateStart: "2024-05-01", DateEnd: "2024-04-01"}, state)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

// TestPostback tests control-triggering payloads.
func TestPostback(t *testing.T) {
	t.Parallel()

	state := session.New([]session.Field{{Name: session.FieldViewState, Value: "vs"}}, "")
	payload := Postback("ctl00$ContentPlaceHolder1$lnkNext", "", state)

	if payload[session.FieldEventTarget] != "ctl00$ContentPlaceHolder1$lnkNext" {
		t.Errorf("unexpected event target %q", payload[session.FieldEventTarget])
	}
	if payload[session.FieldViewState] != "vs" {
		t.Errorf("expected view state to be echoed, got %q", payload[session.FieldViewState])
	}
	if _, ok := payload[FieldSubmit]; ok {
		t.Error("postback must not press the search button")
	}

	clone := payload.Clone()
	clone[session.FieldViewState] = "changed"
	if payload[session.FieldViewState] != "vs" {
		t.Error("Clone shares storage with the original")
	}
}
