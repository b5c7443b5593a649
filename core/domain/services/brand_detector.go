package services

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/carlosrabelo/arava/core/domain/entities"
)

// brandSignature holds the matching rules for one vendor: keyword
// substrings checked against platform/device-type strings and version
// banner patterns checked against raw command output.
type brandSignature struct {
	keywords []string
	banners  []*regexp.Regexp
}

var brandSignatures = map[string]brandSignature{
	"cisco": {
		keywords: []string{"cisco", "ios", "iosxe", "iosxr", "nxos", "asa"},
		banners: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Cisco IOS`),
			regexp.MustCompile(`(?i)Cisco Nexus`),
			regexp.MustCompile(`(?i)Cisco ASA`),
			regexp.MustCompile(`(?i)IOS-XE`),
			regexp.MustCompile(`(?i)IOS-XR`),
			regexp.MustCompile(`(?i)System image file is.*cisco`),
		},
	},
	"huawei": {
		keywords: []string{"huawei", "vrp", "cloudengine", "s5700", "s6700"},
		banners: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Huawei Versatile Routing Platform`),
			regexp.MustCompile(`(?i)VRP \(R\) software`),
			regexp.MustCompile(`(?i)CloudEngine`),
			regexp.MustCompile(`(?i)HUAWEI.*Version`),
		},
	},
	"h3c": {
		keywords: []string{"h3c", "comware", "s5120", "s5130", "msr"},
		banners: []*regexp.Regexp{
			regexp.MustCompile(`(?i)H3C Comware`),
			regexp.MustCompile(`(?i)3Com Comware`),
			regexp.MustCompile(`(?i)H3C.*Version`),
			regexp.MustCompile(`(?i)Comware Software`),
		},
	},
	"juniper": {
		keywords: []string{"juniper", "junos", "srx", "mx", "ex"},
		banners: []*regexp.Regexp{
			regexp.MustCompile(`(?i)JUNOS`),
			regexp.MustCompile(`(?i)Juniper Networks`),
		},
	},
	"arista": {
		keywords: []string{"arista", "eos"},
		banners: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Arista DCS`),
			regexp.MustCompile(`(?i)Arista EOS`),
		},
	},
}

// BrandDetector infers the vendor of a device from inventory metadata,
// raw command output, or both, with a confidence score reflecting how
// the sources agree.
type BrandDetector struct {
	log *zap.Logger
}

// NewBrandDetector builds a detector over the built-in signature set.
func NewBrandDetector(log *zap.Logger) *BrandDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &BrandDetector{log: log}
}

// Detect combines both sources. Agreement scores 0.95. On conflict the
// metadata wins at 0.9 when it carries an explicit brand field,
// otherwise the output wins at 0.7. A single source scores 0.8
// (metadata) or 0.85 (output). No match at all is ("", 0).
func (d *BrandDetector) Detect(meta entities.HostMetadata, rawOutput string) (string, float64) {
	fromMeta := d.DetectFromMetadata(meta)
	fromOutput := ""
	if rawOutput != "" {
		fromOutput = d.DetectFromOutput(rawOutput)
	}

	switch {
	case fromMeta != "" && fromOutput != "":
		if fromMeta == fromOutput {
			return fromMeta, 0.95
		}
		d.log.Warn("brand detection sources disagree",
			zap.String("metadata", fromMeta),
			zap.String("output", fromOutput))
		if meta.Brand != "" {
			return fromMeta, 0.9
		}
		return fromOutput, 0.7
	case fromMeta != "":
		return fromMeta, 0.8
	case fromOutput != "":
		return fromOutput, 0.85
	default:
		return "", 0.0
	}
}

// DetectFromMetadata checks an explicit brand field first, then keyword
// matches against the platform and device-type strings.
func (d *BrandDetector) DetectFromMetadata(meta entities.HostMetadata) string {
	if meta.Brand != "" {
		brand := strings.ToLower(meta.Brand)
		if _, ok := brandSignatures[brand]; ok {
			return brand
		}
	}
	for _, source := range []string{meta.Platform, meta.DeviceType} {
		if brand := matchKeywords(source); brand != "" {
			return brand
		}
	}
	return ""
}

// DetectFromOutput tries version banner patterns first, then falls back
// to keyword substrings.
func (d *BrandDetector) DetectFromOutput(rawOutput string) string {
	for _, brand := range sortedBrands() {
		for _, banner := range brandSignatures[brand].banners {
			if banner.MatchString(rawOutput) {
				return brand
			}
		}
	}
	return matchKeywords(rawOutput)
}

// SupportedBrands lists the known vendors in stable order.
func (d *BrandDetector) SupportedBrands() []string {
	return sortedBrands()
}

// Validate reports whether a brand is in the supported set.
func (d *BrandDetector) Validate(brand string) bool {
	_, ok := brandSignatures[strings.ToLower(brand)]
	return ok
}

func matchKeywords(source string) string {
	if source == "" {
		return ""
	}
	lower := strings.ToLower(source)
	for _, brand := range sortedBrands() {
		for _, keyword := range brandSignatures[brand].keywords {
			if strings.Contains(lower, keyword) {
				return brand
			}
		}
	}
	return ""
}

func sortedBrands() []string {
	brands := make([]string, 0, len(brandSignatures))
	for brand := range brandSignatures {
		brands = append(brands, brand)
	}
	sort.Strings(brands)
	return brands
}
