package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{name: "true", value: "true", want: true},
		{name: "one", value: "1", want: true},
		{name: "yes uppercase", value: "YES", want: true},
		{name: "on with spaces", value: " on ", want: true},
		{name: "false", value: "false", defaultValue: true, want: false},
		{name: "zero", value: "0", defaultValue: true, want: false},
		{name: "off", value: "off", defaultValue: true, want: false},
		{name: "unset uses default", value: "", defaultValue: true, want: true},
		{name: "garbage uses default", value: "maybe", defaultValue: true, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key := "DIALOGKIT_TEST_BOOL"
			if tc.value != "" {
				t.Setenv(key, tc.value)
			}
			if got := ParseBoolEnv(key, tc.defaultValue); got != tc.want {
				t.Errorf("ParseBoolEnv(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{name: "plain integer", value: "42", want: 42},
		{name: "negative", value: "-3", want: -3},
		{name: "with spaces", value: " 7 ", want: 7},
		{name: "unset uses default", value: "", defaultValue: 5, want: 5},
		{name: "garbage uses default", value: "many", defaultValue: 5, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key := "DIALOGKIT_TEST_INT"
			if tc.value != "" {
				t.Setenv(key, tc.value)
			}
			if got := ParseIntEnv(key, tc.defaultValue); got != tc.want {
				t.Errorf("ParseIntEnv(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}
