// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type logQuery struct {
	Type     string `validate:"omitempty,log_type"`
	Level    string `validate:"omitempty,log_level"`
	Since    string `validate:"omitempty,since_window"`
	Page     int    `validate:"min=1"`
	PerPage  int    `validate:"min=1,max=200"`
	Schedule string `validate:"omitempty,cron_schedule"`
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input logQuery
	}{
		{name: "empty optionals", input: logQuery{Page: 1, PerPage: 50}},
		{name: "all set", input: logQuery{Type: "http_request", Level: "warning", Since: "24h", Page: 3, PerPage: 200, Schedule: "@daily"}},
		{name: "cron expression", input: logQuery{Page: 1, PerPage: 1, Schedule: "0 3 * * *"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("expected valid, got %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   logQuery
		wantTag string
	}{
		{name: "unknown type", input: logQuery{Type: "bogus", Page: 1, PerPage: 1}, wantTag: "log_type"},
		{name: "unknown level", input: logQuery{Level: "loud", Page: 1, PerPage: 1}, wantTag: "log_level"},
		{name: "bad since", input: logQuery{Since: "2w", Page: 1, PerPage: 1}, wantTag: "since_window"},
		{name: "page zero", input: logQuery{Page: 0, PerPage: 1}, wantTag: "min"},
		{name: "per page too large", input: logQuery{Page: 1, PerPage: 500}, wantTag: "max"},
		{name: "bad schedule", input: logQuery{Page: 1, PerPage: 1, Schedule: "every tuesday"}, wantTag: "cron_schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if len(err.Errors()) != 1 {
				t.Fatalf("expected one error, got %d: %v", len(err.Errors()), err)
			}
			if got := err.Errors()[0].Tag(); got != tt.wantTag {
				t.Errorf("expected tag %q, got %q", tt.wantTag, got)
			}
		})
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	err := ValidateStruct(&logQuery{Page: 1, PerPage: 500})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", apiErr.Code)
	}
	if apiErr.Message != "PerPage must be at most 200" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "PerPage" {
		t.Errorf("expected field detail, got %v", apiErr.Details)
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	err := ValidateStruct(&logQuery{Type: "bogus", Level: "loud", Page: 0, PerPage: 1})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 3 {
		t.Fatalf("expected 3 field details, got %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "Type must be a known log type") {
		t.Errorf("expected log type message, got %q", apiErr.Message)
	}
}

type retentionSettings struct {
	PerType map[string]int `validate:"dive,keys,log_type,endkeys,min=0"`
	Types   []string       `validate:"dive,log_type"`
}

func TestDiveValidation(t *testing.T) {
	ok := retentionSettings{
		PerType: map[string]int{"http_request": 7, "error": 0},
		Types:   []string{"error", "system"},
	}
	if err := ValidateStruct(&ok); err != nil {
		t.Errorf("expected valid, got %v", err)
	}

	badKey := retentionSettings{PerType: map[string]int{"nonsense": 7}}
	if err := ValidateStruct(&badKey); err == nil {
		t.Error("expected unknown map key to fail")
	}

	badValue := retentionSettings{PerType: map[string]int{"error": -1}}
	if err := ValidateStruct(&badValue); err == nil {
		t.Error("expected negative retention to fail")
	}

	badSlice := retentionSettings{Types: []string{"error", "nonsense"}}
	if err := ValidateStruct(&badSlice); err == nil {
		t.Error("expected unknown slice element to fail")
	}
}
