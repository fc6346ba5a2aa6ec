// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package event

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestTypeValid(t *testing.T) {
	valid := []Type{
		TypeScreenView, TypeVideoPlay, TypeVideoComplete, TypeSearch,
		TypePurchaseCompleted, TypeError, TypeSessionStart, TypeAppForeground,
	}
	for _, typ := range valid {
		if !typ.Valid() {
			t.Errorf("Type(%q).Valid() = false, want true", typ)
		}
	}

	invalid := []Type{"", "SCREEN_VIEW", "screen-view", "unknown"}
	for _, typ := range invalid {
		if typ.Valid() {
			t.Errorf("Type(%q).Valid() = true, want false", typ)
		}
	}
}

func TestNewStampsTimestamp(t *testing.T) {
	before := time.Now().UnixMilli()
	ev := New(TypeScreenView, nil)
	after := time.Now().UnixMilli()

	if ev.Timestamp < before || ev.Timestamp > after {
		t.Errorf("Timestamp = %d, want within [%d, %d]", ev.Timestamp, before, after)
	}
	if ev.Data == nil {
		t.Error("New(nil data) left Data nil; wire format requires an object")
	}
}

func TestValidate(t *testing.T) {
	ev := New(TypeScreenView, nil)
	ev.SessionID = "s1"
	if err := ev.Validate(); err != nil {
		t.Errorf("Validate() on complete event = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{"unknown type", func(e *Event) { e.EventType = "bogus" }},
		{"zero timestamp", func(e *Event) { e.Timestamp = 0 }},
		{"missing session", func(e *Event) { e.SessionID = "" }},
	}
	for _, tc := range cases {
		ev := New(TypeScreenView, nil)
		ev.SessionID = "s1"
		tc.mutate(ev)
		if err := ev.Validate(); err == nil {
			t.Errorf("Validate() with %s = nil, want error", tc.name)
		}
	}
}

func TestWireFormatFieldNames(t *testing.T) {
	uid := int64(7)
	ev := New(TypeVideoPlay, VideoData(101, 5, nil))
	ev.SessionID = "session-abc"
	ev.UserID = &uid
	ev.DeviceInfo = &DeviceInfo{
		DeviceID:     "dev-1",
		Platform:     "android",
		OSVersion:    "14",
		AppVersion:   "1.2.3",
		DeviceModel:  "Pixel 8",
		ScreenWidth:  1080,
		ScreenHeight: 2400,
		Language:     "en",
		Timezone:     "UTC",
	}

	data, err := Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal to map failed: %v", err)
	}

	for _, key := range []string{"eventType", "timestamp", "sessionId", "userId", "data", "deviceInfo"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("wire format missing field %q", key)
		}
	}

	device, ok := decoded["deviceInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("deviceInfo is not an object")
	}
	for _, key := range []string{
		"deviceId", "platform", "osVersion", "appVersion", "deviceModel",
		"screenWidth", "screenHeight", "language", "timezone",
	} {
		if _, ok := device[key]; !ok {
			t.Errorf("deviceInfo missing field %q", key)
		}
	}
}

func TestUserIDOmittedWhenAbsent(t *testing.T) {
	ev := New(TypeScreenView, nil)
	ev.SessionID = "s1"

	data, err := Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if strings.Contains(string(data), "userId") {
		t.Errorf("anonymous event serialized a userId field: %s", data)
	}
}

func TestMarshalRejectsInvalidEvent(t *testing.T) {
	ev := New(TypeScreenView, nil) // no session id
	if _, err := Marshal(ev); err == nil {
		t.Error("Marshal() of incomplete event = nil error, want error")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	uid := int64(99)
	ev := New(TypeSearch, SearchData("romance drama", 12, map[string]any{"genre": "romance"}))
	ev.SessionID = "session-rt"
	ev.UserID = &uid

	data, err := Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	if got.EventType != TypeSearch {
		t.Errorf("EventType = %s, want search", got.EventType)
	}
	if got.SessionID != "session-rt" {
		t.Errorf("SessionID = %s, want session-rt", got.SessionID)
	}
	if got.UserID == nil || *got.UserID != 99 {
		t.Errorf("UserID = %v, want 99", got.UserID)
	}
	if got.Data["query"] != "romance drama" {
		t.Errorf("Data[query] = %v, want romance drama", got.Data["query"])
	}
}

func TestTypeForVideoKind(t *testing.T) {
	cases := []struct {
		kind VideoKind
		want Type
	}{
		{VideoPlay, TypeVideoPlay},
		{VideoPause, TypeVideoPause},
		{VideoSeek, TypeVideoSeek},
		{VideoComplete, TypeVideoComplete},
	}
	for _, tc := range cases {
		got, ok := TypeForVideoKind(tc.kind)
		if !ok || got != tc.want {
			t.Errorf("TypeForVideoKind(%s) = (%s, %v), want (%s, true)", tc.kind, got, ok, tc.want)
		}
	}

	if _, ok := TypeForVideoKind("rewind"); ok {
		t.Error("TypeForVideoKind(rewind) = true, want false")
	}
}

func TestPayloadBuilders(t *testing.T) {
	if got := ScreenViewData("home")["screenName"]; got != "home" {
		t.Errorf("ScreenViewData screenName = %v, want home", got)
	}

	pos := 42.5
	video := VideoData(10, 3, &pos)
	if video["episodeId"] != int64(10) || video["seriesId"] != int64(3) {
		t.Errorf("VideoData ids = %v/%v, want 10/3", video["episodeId"], video["seriesId"])
	}
	if video["position"] != 42.5 {
		t.Errorf("VideoData position = %v, want 42.5", video["position"])
	}
	if _, ok := VideoData(1, 1, nil)["position"]; ok {
		t.Error("VideoData(nil position) included a position key")
	}

	search := SearchData("query", 5, nil)
	if _, ok := search["filters"]; ok {
		t.Error("SearchData(nil filters) included a filters key")
	}

	errData := ErrorData("TypeError", "boom", "")
	if _, ok := errData["stack"]; ok {
		t.Error("ErrorData(empty stack) included a stack key")
	}
	if errData["errorName"] != "TypeError" || errData["errorMessage"] != "boom" {
		t.Errorf("ErrorData fields = %v", errData)
	}
}
