package util

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type spotRequest struct {
	SpotKey string `validate:"required,strNotEmpty"`
	Role    string `validate:"cmin=2,cmax=10"`
}

func TestCustomValidations(t *testing.T) {
	v := validator.New()
	if err := RegisterCustomValidations(v); err != nil {
		t.Fatalf("RegisterCustomValidations: %v", err)
	}

	tests := []struct {
		name    string
		req     spotRequest
		wantErr bool
		field   string
	}{
		{"valid", spotRequest{SpotKey: "buyer_signature", Role: "buyer"}, false, ""},
		{"whitespace key", spotRequest{SpotKey: "   ", Role: "buyer"}, true, "SpotKey"},
		{"role too short after trim", spotRequest{SpotKey: "k", Role: " b "}, true, "Role"},
		{"role too long", spotRequest{SpotKey: "k", Role: "countersigner"}, true, "Role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			msgs := GenerateErrorMessages(err)
			if len(msgs) != 1 || msgs[0].Field != tt.field {
				t.Errorf("unexpected messages %+v", msgs)
			}
		})
	}
}
