// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package event

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/shortdramaverse/telemetry/internal/logging"
)

// DeviceInfo is the device/platform metadata snapshot attached to every
// event. Collected once at pipeline initialization, never per event.
//
// JSON field names match the ingestion endpoint's wire format.
type DeviceInfo struct {
	DeviceID     string `json:"deviceId"`
	Platform     string `json:"platform"`
	OSVersion    string `json:"osVersion"`
	AppVersion   string `json:"appVersion"`
	DeviceModel  string `json:"deviceModel"`
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
	Language     string `json:"language"`
	Timezone     string `json:"timezone"`
}

// DeviceOverrides carries client-reported fields the host process cannot
// detect itself (app version, display geometry) plus optional replacements
// for detected values.
type DeviceOverrides struct {
	Platform     string
	OSVersion    string
	AppVersion   string
	DeviceModel  string
	ScreenWidth  int
	ScreenHeight int
	Language     string
	Timezone     string
}

// CollectDeviceInfo builds the device snapshot. Detection failures degrade
// to generic values; this never returns an error because initialization
// must not fail on metadata (the events matter more than their garnish).
func CollectDeviceInfo(ctx context.Context, deviceID string, ov DeviceOverrides) *DeviceInfo {
	info := &DeviceInfo{
		DeviceID:     deviceID,
		Platform:     runtime.GOOS,
		DeviceModel:  runtime.GOARCH,
		AppVersion:   ov.AppVersion,
		ScreenWidth:  ov.ScreenWidth,
		ScreenHeight: ov.ScreenHeight,
		Language:     detectLanguage(),
		Timezone:     detectTimezone(),
	}

	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("device info: host detection failed, using generic values")
	} else {
		if hi.Platform != "" {
			info.Platform = hi.Platform
		}
		info.OSVersion = hi.PlatformVersion
		if hi.KernelArch != "" {
			info.DeviceModel = hi.KernelArch
		}
	}

	// Config overrides win over detection.
	if ov.Platform != "" {
		info.Platform = ov.Platform
	}
	if ov.OSVersion != "" {
		info.OSVersion = ov.OSVersion
	}
	if ov.DeviceModel != "" {
		info.DeviceModel = ov.DeviceModel
	}
	if ov.Language != "" {
		info.Language = ov.Language
	}
	if ov.Timezone != "" {
		info.Timezone = ov.Timezone
	}

	return info
}

// detectLanguage derives the language tag from the process locale.
func detectLanguage() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			// "en_US.UTF-8" -> "en_US"
			if i := strings.IndexByte(v, '.'); i > 0 {
				v = v[:i]
			}
			return v
		}
	}
	return "en"
}

// detectTimezone returns the IANA zone name when available, falling back to
// the fixed-offset abbreviation.
func detectTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	abbrev, _ := time.Now().Zone()
	return abbrev
}
