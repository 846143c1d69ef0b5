package core

import (
	"errors"
	"testing"
)

func TestJSONEncode(t *testing.T) {
	tests := []struct {
		name    string
		v       interface{}
		wantErr bool
	}{
		{"valid map", map[string]string{"key": "value"}, false},
		{"valid string", "test", false},
		{"nil value", nil, true},
		{"valid struct", struct{ Name string }{"test"}, false},
		{"unsupported", make(chan int), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSONEncode(tt.v)
			if (err != nil) != tt.wantErr {
				t.Errorf("JSONEncode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJSONDecode(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	if err := JSONDecode([]byte(`{"name":"pool"}`), &out); err != nil {
		t.Fatalf("JSONDecode() error = %v", err)
	}
	if out.Name != "pool" {
		t.Errorf("Name = %q, want pool", out.Name)
	}

	var coded *Error
	if err := JSONDecode(nil, &out); !errors.As(err, &coded) || coded.Code != "INVALID_INPUT" {
		t.Errorf("JSONDecode(nil) error = %v, want INVALID_INPUT", err)
	}
	if err := JSONDecode([]byte(`{`), &out); err == nil {
		t.Error("JSONDecode() of truncated input should fail")
	}
}
