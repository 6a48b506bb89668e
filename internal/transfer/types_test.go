package transfer

import (
	"errors"
	"testing"
)

func TestIntentValidate(t *testing.T) {
	t.Parallel()

	valid := Intent{Amount: "10", Recipient: "0xabc", Network: "Move", Kind: KindSend}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid intent rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Intent)
	}{
		{"missing amount", func(i *Intent) { i.Amount = "" }},
		{"blank amount", func(i *Intent) { i.Amount = "   " }},
		{"non-decimal amount", func(i *Intent) { i.Amount = "ten" }},
		{"zero amount", func(i *Intent) { i.Amount = "0" }},
		{"negative amount", func(i *Intent) { i.Amount = "-3" }},
		{"missing kind", func(i *Intent) { i.Kind = "" }},
		{"unknown kind", func(i *Intent) { i.Kind = "withdraw" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			intent := valid
			tc.mutate(&intent)
			if err := intent.Validate(); !errors.Is(err, ErrInvalidIntent) {
				t.Fatalf("expected ErrInvalidIntent, got %v", err)
			}
		})
	}

	fractional := valid
	fractional.Amount = "0.0001"
	if err := fractional.Validate(); err != nil {
		t.Fatalf("fractional amount rejected: %v", err)
	}
}

func TestSubmissionExecuted(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		sub  Submission
		want bool
	}{
		{"canonical", Submission{Success: true, VMStatus: "Executed successfully"}, true},
		{"case-insensitive", Submission{Success: true, VMStatus: "EXECUTED SUCCESSFULLY"}, true},
		{"surrounding whitespace", Submission{Success: true, VMStatus: "  executed successfully  "}, true},
		{"transport success but vm failure", Submission{Success: true, VMStatus: "Move abort"}, false},
		{"verdict without transport success", Submission{Success: false, VMStatus: "Executed successfully"}, false},
		{"prefix is not enough", Submission{Success: true, VMStatus: "Executed successfully with warnings"}, false},
		{"empty status", Submission{Success: true}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.sub.Executed(); got != tc.want {
				t.Fatalf("Executed() = %v, want %v for %+v", got, tc.want, tc.sub)
			}
		})
	}
}

func TestUnsignedPayloadValidate(t *testing.T) {
	t.Parallel()

	ok := UnsignedPayload{RawTransaction: "RT", SigningMessage: "0xdead"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := (UnsignedPayload{SigningMessage: "0xdead"}).Validate(); err == nil {
		t.Fatal("expected error for missing raw transaction")
	}
	if err := (UnsignedPayload{RawTransaction: "RT"}).Validate(); err == nil {
		t.Fatal("expected error for missing signing message")
	}
}
