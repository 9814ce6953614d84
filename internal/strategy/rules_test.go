package strategy

import (
	"testing"

	"DipSentinel/internal/model"
)

var testThresholds = Thresholds{
	DipPercentage:            1.0,
	DipFromHigh:              2.0,
	MAPeriod:                 5,
	ConsecutiveDropThreshold: 3,
}

func kinds(alerts []model.Alert) map[model.AlertKind]model.Alert {
	out := make(map[model.AlertKind]model.Alert, len(alerts))
	for _, a := range alerts {
		out[a.Kind] = a
	}
	return out
}

func TestDetectAlerts_Quiet(t *testing.T) {
	s := Snapshot{Symbol: "X", Price: 100, PreviousPrice: 100, HasPrevious: true, TodayHigh: 100, DailyOpen: 100}
	if alerts := DetectAlerts(s, testThresholds); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %v", alerts)
	}
}

func TestDetectAlerts_HistoryIndependentRules(t *testing.T) {
	s := Snapshot{
		Symbol:           "X",
		Price:            96,
		PreviousPrice:    98,
		HasPrevious:      true,
		TodayHigh:        100,
		DailyOpen:        100,
		MovingAverage:    98,
		HasMA:            true,
		ConsecutiveDrops: 3,
	}
	got := kinds(DetectAlerts(s, testThresholds))
	for _, k := range []model.AlertKind{
		model.AlertPriceDip, model.AlertHighDip, model.AlertMABreach,
		model.AlertConsecutiveDrops, model.AlertOpenDrop,
	} {
		if _, ok := got[k]; !ok {
			t.Errorf("expected %s to fire", k)
		}
	}
	if len(got) != 5 {
		t.Errorf("expected 5 alerts without a profile, got %d", len(got))
	}
	if a := got[model.AlertMABreach]; a.Count != 5 || a.Reference != 98 {
		t.Errorf("unexpected ma_breach payload: %+v", a)
	}
	if a := got[model.AlertConsecutiveDrops]; a.Count != 3 {
		t.Errorf("expected drop count 3, got %d", a.Count)
	}
}

func TestDetectAlerts_FirstSampleHasNoPriceDip(t *testing.T) {
	s := Snapshot{Symbol: "X", Price: 50, TodayHigh: 50, DailyOpen: 50}
	if _, ok := kinds(DetectAlerts(s, testThresholds))[model.AlertPriceDip]; ok {
		t.Error("price_dip must not fire without a previous price")
	}
}

func TestDetectAlerts_HistoryRules(t *testing.T) {
	profile := &model.HistoricalProfile{Min: 95, Max: 120, SMALong: 110}
	strong := &model.Recommendation{Signal: model.SignalStrongBuy}

	s := Snapshot{
		Symbol:         "X",
		Price:          96,
		TodayHigh:      99,
		DailyOpen:      97,
		Profile:        profile,
		Recommendation: strong,
	}
	got := kinds(DetectAlerts(s, testThresholds))
	for _, k := range []model.AlertKind{model.AlertValueZone, model.AlertDipOpportunity, model.AlertNearLow} {
		if _, ok := got[k]; !ok {
			t.Errorf("expected %s to fire", k)
		}
	}
	if rank := got[model.AlertValueZone].ChangePct; rank != 4 {
		t.Errorf("expected percentile rank 4, got %v", rank)
	}

	s.Recommendation = &model.Recommendation{Signal: model.SignalBuy}
	got = kinds(DetectAlerts(s, testThresholds))
	if _, ok := got[model.AlertNearLow]; ok {
		t.Error("near_low requires STRONG_BUY")
	}
	if _, ok := got[model.AlertValueZone]; !ok {
		t.Error("value_zone should fire on BUY")
	}

	s.Recommendation = &model.Recommendation{Signal: model.SignalHold}
	got = kinds(DetectAlerts(s, testThresholds))
	for _, k := range []model.AlertKind{model.AlertValueZone, model.AlertDipOpportunity, model.AlertNearLow} {
		if _, ok := got[k]; ok {
			t.Errorf("%s must not fire on HOLD", k)
		}
	}
}

func TestDetectAlerts_DipOpportunityNeedsDowntrend(t *testing.T) {
	profile := &model.HistoricalProfile{Min: 50, Max: 120, SMALong: 90}
	s := Snapshot{
		Symbol:         "X",
		Price:          96,
		TodayHigh:      99,
		Profile:        profile,
		Recommendation: &model.Recommendation{Signal: model.SignalBuy},
	}
	if _, ok := kinds(DetectAlerts(s, testThresholds))[model.AlertDipOpportunity]; ok {
		t.Error("dip_opportunity requires price below the long historical average")
	}
}

func TestDetectAlerts_NoRecommendationSkipsHistoryRules(t *testing.T) {
	s := Snapshot{
		Symbol:    "X",
		Price:     96,
		TodayHigh: 96,
		Profile:   &model.HistoricalProfile{Min: 95, Max: 120, SMALong: 110},
	}
	if alerts := DetectAlerts(s, testThresholds); len(alerts) != 0 {
		t.Errorf("expected no alerts before a recommendation exists, got %v", alerts)
	}
}
