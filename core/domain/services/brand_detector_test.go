package services

import (
	"testing"

	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/entities"
)

const ciscoShowVersion = `Cisco IOS Software, C2960X Software (C2960X-UNIVERSALK9-M), Version 15.2(2)E6
Technical Support: http://www.cisco.com/techsupport
Copyright (c) 1986-2016 by Cisco Systems, Inc.`

const huaweiDisplayVersion = `Huawei Versatile Routing Platform Software
VRP (R) software, Version 5.170 (S5700 V200R010C00SPC600)
Copyright (C) 2000-2016 HUAWEI TECH CO., LTD`

const h3cDisplayVersion = `H3C Comware Software, Version 7.1.070, Release 6728
Copyright (c) 2004-2017 New H3C Technologies Co., Ltd. All rights reserved.`

func TestDetectConfidenceLadder(t *testing.T) {
	d := NewBrandDetector(zap.NewNop())

	tests := []struct {
		name      string
		meta      entities.HostMetadata
		output    string
		wantBrand string
		wantScore float64
	}{
		{
			name:      "metadata and output agree",
			meta:      entities.HostMetadata{Platform: "cisco_iosxe"},
			output:    ciscoShowVersion,
			wantBrand: "cisco",
			wantScore: 0.95,
		},
		{
			name:      "explicit brand field wins a conflict",
			meta:      entities.HostMetadata{Brand: "huawei"},
			output:    ciscoShowVersion,
			wantBrand: "huawei",
			wantScore: 0.9,
		},
		{
			name:      "output wins over inferred metadata on conflict",
			meta:      entities.HostMetadata{Platform: "huawei_vrp"},
			output:    ciscoShowVersion,
			wantBrand: "cisco",
			wantScore: 0.7,
		},
		{
			name:      "metadata only",
			meta:      entities.HostMetadata{Platform: "cisco_iosxe"},
			wantBrand: "cisco",
			wantScore: 0.8,
		},
		{
			name:      "output only",
			output:    huaweiDisplayVersion,
			wantBrand: "huawei",
			wantScore: 0.85,
		},
		{
			name:      "no signal at all",
			meta:      entities.HostMetadata{Platform: "unknown_os"},
			output:    "command rejected",
			wantBrand: "",
			wantScore: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brand, score := d.Detect(tt.meta, tt.output)
			if brand != tt.wantBrand || score != tt.wantScore {
				t.Errorf("Detect() = (%q, %v), want (%q, %v)", brand, score, tt.wantBrand, tt.wantScore)
			}
		})
	}
}

func TestDetectFromMetadata(t *testing.T) {
	d := NewBrandDetector(zap.NewNop())

	tests := []struct {
		meta entities.HostMetadata
		want string
	}{
		{entities.HostMetadata{Brand: "Cisco"}, "cisco"},
		{entities.HostMetadata{Brand: "acme"}, ""},
		{entities.HostMetadata{Platform: "hp_comware"}, "h3c"},
		{entities.HostMetadata{DeviceType: "huawei_vrp"}, "huawei"},
		{entities.HostMetadata{Platform: "juniper_junos"}, "juniper"},
		{entities.HostMetadata{}, ""},
	}
	for _, tt := range tests {
		if got := d.DetectFromMetadata(tt.meta); got != tt.want {
			t.Errorf("DetectFromMetadata(%+v) = %q, want %q", tt.meta, got, tt.want)
		}
	}
}

func TestDetectFromOutputBanners(t *testing.T) {
	d := NewBrandDetector(zap.NewNop())

	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"cisco ios", ciscoShowVersion, "cisco"},
		{"huawei vrp", huaweiDisplayVersion, "huawei"},
		{"h3c comware", h3cDisplayVersion, "h3c"},
		{"junos", "JUNOS Software Release [12.3R12.4]", "juniper"},
		{"arista", "Arista DCS-7050SX-64\nSoftware image version: 4.20", "arista"},
		{"garbage", "% Invalid input detected", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.DetectFromOutput(tt.output); got != tt.want {
				t.Errorf("DetectFromOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateAndSupportedBrands(t *testing.T) {
	d := NewBrandDetector(zap.NewNop())

	if !d.Validate("cisco") || !d.Validate("H3C") {
		t.Error("known brands must validate, case-insensitively")
	}
	if d.Validate("acme") {
		t.Error("unknown brand must not validate")
	}

	brands := d.SupportedBrands()
	if len(brands) != 5 {
		t.Fatalf("SupportedBrands: got %d entries, want 5", len(brands))
	}
	for i := 1; i < len(brands); i++ {
		if brands[i-1] >= brands[i] {
			t.Errorf("SupportedBrands must be sorted: %v", brands)
		}
	}
}
