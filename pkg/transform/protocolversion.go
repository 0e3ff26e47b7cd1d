package transform

import (
	"regexp"
	"strings"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

// ProtocolVersion pairs a raw protocol token with the version string
// extracted next to it. Version is empty when none was found.
type ProtocolVersion struct {
	Protocol string
	Version  string
}

var (
	segmentSplitRe  = regexp.MustCompile(`;|&|\band\b`)
	versionRe       = regexp.MustCompile(`(?i)\b(?:version|ver|v)\s*\.?\s*(\d+(?:\.\d+)?)`)
	protocolTokenRe = regexp.MustCompile(`^[A-Z]+[A-Z0-9.-]*$`)
)

func normalizeVersion(version string) string {
	if !strings.Contains(version, ".") {
		return version + ".0"
	}
	return version
}

var tokenPunctuation = strings.NewReplacer(":", " ", ",", " ", `"`, " ", "(", " ", ")", " ")

func findProtocolToken(segment string) string {
	for _, token := range strings.Fields(tokenPunctuation.Replace(segment)) {
		token = strings.TrimSuffix(token, ".")
		if len(token) < 3 || !protocolTokenRe.MatchString(token) {
			continue
		}
		// Plain words like TREES or REDD are not methodology codes;
		// codes carry a digit or a hyphenated suffix.
		if !strings.ContainsAny(token, "0123456789") && !strings.Contains(token, "-") {
			continue
		}
		return token
	}
	return ""
}

// ExtractProtocolVersionPairs pulls (protocol, version) pairs out of a
// raw methodology string. Multi-protocol strings may be separated by
// semicolons, ampersands, or the word "and". Versions are normalized
// to have a decimal component.
func ExtractProtocolVersionPairs(raw string) []ProtocolVersion {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var pairs []ProtocolVersion
	for _, segment := range segmentSplitRe.Split(raw, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		protocol := findProtocolToken(segment)
		if protocol == "" {
			continue
		}
		version := ""
		if m := versionRe.FindStringSubmatch(segment); m != nil {
			version = normalizeVersion(m[1])
		}
		pairs = append(pairs, ProtocolVersion{Protocol: protocol, Version: version})
	}
	return pairs
}

var alphanumericOnlyRe = regexp.MustCompile(`[^a-z0-9]`)

func protocolLookupKey(protocol string) string {
	return alphanumericOnlyRe.ReplaceAllString(strings.ToLower(protocol), "")
}

// AlignProtocolVersions matches extracted version pairs against a
// normalized protocol list. Matching is case-insensitive and ignores
// punctuation, so "AMS-III.D" aligns with "amsiiid". Protocols without
// a version get an empty slot.
func AlignProtocolVersions(protocols []string, pairs []ProtocolVersion) []string {
	byKey := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		byKey[protocolLookupKey(pair.Protocol)] = pair.Version
	}
	versions := make([]string, len(protocols))
	for i, protocol := range protocols {
		versions[i] = byKey[protocolLookupKey(protocol)]
	}
	return versions
}

// AddProtocolVersions derives the protocol_version list column from
// the raw original_protocol strings, aligned element-wise with the
// protocol column. Rows without extractable versions get empty slots.
func AddProtocolVersions(f *frame.Frame) *frame.Frame {
	versions := make([]frame.Value, f.Len())
	for row := 0; row < f.Len(); row++ {
		var pairs []ProtocolVersion
		if raw := f.Value("original_protocol", row); !raw.IsNull() {
			pairs = ExtractProtocolVersionPairs(raw.Str())
		}
		var protocols []string
		if v := f.Value("protocol", row); !v.IsNull() {
			protocols = v.List()
		}
		versions[row] = frame.StringList(AlignProtocolVersions(protocols, pairs))
	}
	f.SetColumn("protocol_version", versions)
	return f
}
