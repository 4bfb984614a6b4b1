package mood

import "testing"

func TestIsFrustrated(t *testing.T) {
	t.Parallel()

	frustrated := []string{
		"I want to speak to a human",
		"This is RIDICULOUS",
		"ugh, this is a waste of time",
		"can I get a real person please",
		"the form is not working",
	}
	for _, msg := range frustrated {
		if !IsFrustrated(msg) {
			t.Errorf("expected %q to be frustrated", msg)
		}
	}

	neutral := []string{"10001", "Jane Doe", "commuting", "yes", ""}
	for _, msg := range neutral {
		if IsFrustrated(msg) {
			t.Errorf("expected %q to be neutral", msg)
		}
	}
}
