// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package event

import (
	"context"
	"testing"
)

func TestCollectDeviceInfoNeverEmpty(t *testing.T) {
	info := CollectDeviceInfo(context.Background(), "device-123", DeviceOverrides{})

	if info.DeviceID != "device-123" {
		t.Errorf("DeviceID = %s, want device-123", info.DeviceID)
	}
	if info.Platform == "" {
		t.Error("Platform is empty; detection must degrade to a generic value")
	}
	if info.Language == "" {
		t.Error("Language is empty; detection must degrade to a default")
	}
	if info.Timezone == "" {
		t.Error("Timezone is empty; detection must degrade to a default")
	}
}

func TestCollectDeviceInfoOverrides(t *testing.T) {
	ov := DeviceOverrides{
		Platform:     "android",
		OSVersion:    "14",
		AppVersion:   "2.0.1",
		DeviceModel:  "Pixel 8",
		ScreenWidth:  1080,
		ScreenHeight: 2400,
		Language:     "pt",
		Timezone:     "America/Sao_Paulo",
	}
	info := CollectDeviceInfo(context.Background(), "dev-1", ov)

	if info.Platform != "android" {
		t.Errorf("Platform = %s, want android", info.Platform)
	}
	if info.OSVersion != "14" {
		t.Errorf("OSVersion = %s, want 14", info.OSVersion)
	}
	if info.AppVersion != "2.0.1" {
		t.Errorf("AppVersion = %s, want 2.0.1", info.AppVersion)
	}
	if info.DeviceModel != "Pixel 8" {
		t.Errorf("DeviceModel = %s, want Pixel 8", info.DeviceModel)
	}
	if info.ScreenWidth != 1080 || info.ScreenHeight != 2400 {
		t.Errorf("screen = %dx%d, want 1080x2400", info.ScreenWidth, info.ScreenHeight)
	}
	if info.Language != "pt" {
		t.Errorf("Language = %s, want pt", info.Language)
	}
	if info.Timezone != "America/Sao_Paulo" {
		t.Errorf("Timezone = %s, want America/Sao_Paulo", info.Timezone)
	}
}
