package matcher

import "testing"

func TestCanon(t *testing.T) {
	cases := map[string]string{
		"  energy/kpi  ": "energy_kpi",
		"energy:kpi":     "energy_kpi",
		"already_ok":     "already_ok",
	}
	for in, want := range cases {
		if got := Canon(in); got != want {
			t.Errorf("Canon(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatch_Exact(t *testing.T) {
	if !Match("get_energy_kpi", "get_energy_kpi") {
		t.Error("expected exact match")
	}
	if Match("get_energy_kpi", "get_weather_forecast") {
		t.Error("expected no match")
	}
}

func TestMatch_WildcardSuffix(t *testing.T) {
	if !Match("energy_*", "energy_get_kpi") {
		t.Error("expected wildcard prefix match")
	}
	if Match("energy_*", "weather_get_forecast") {
		t.Error("expected no match across services")
	}
}

func TestMatch_ServiceOnly(t *testing.T) {
	if !Match("energy_get", "energy_get_kpi") {
		t.Error("expected service-only match on prefix before final segment")
	}
}

func TestMatch_LegacyPrefix(t *testing.T) {
	if !Match("energy", "energy_kpi") {
		t.Error("expected legacy bare-prefix match")
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"weather_*", "energy_get_kpi"}
	if !MatchAny(patterns, "energy_get_kpi") {
		t.Error("expected match against second pattern")
	}
	if MatchAny(patterns, "billing_invoice") {
		t.Error("expected no match")
	}
}
