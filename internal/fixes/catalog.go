// Package fixes is the single source of truth for which automatic remediation the
// Processing API offers for each issue type.
package fixes

import (
	"sort"
	"strings"

	"github.com/jonathan/preflight-agent/internal/types"
)

// Bundle is a named group of related fix operations.
type Bundle string

// Bundles offered for "fix all issues in category X".
const (
	StructuralBundle Bundle = "STRUCTURAL_BUNDLE"
	FontBundle       Bundle = "FONT_BUNDLE"
	ColorBundle      Bundle = "COLOR_BUNDLE"
	ImageBundle      Bundle = "IMAGE_BUNDLE"
	ComplianceBundle Bundle = "COMPLIANCE_BUNDLE"
)

// Bundles lists every bundle in display order.
var Bundles = []Bundle{StructuralBundle, FontBundle, ColorBundle, ImageBundle, ComplianceBundle}

// Fix operation names understood by POST /fix.
const (
	FixStructure           = "fix_structure"
	FixMetadata            = "fix_metadata"
	OptimizeFile           = "optimize_file"
	RemoveJavaScript       = "remove_javascript"
	AddBleed               = "add_bleed"
	EmbedFonts             = "embed_fonts"
	OutlineFonts           = "outline_fonts"
	ConvertToCMYK          = "convert_to_cmyk"
	ConvertSpotColors      = "convert_spot_colors"
	AddOutputIntent        = "add_output_intent"
	FlattenTransparency    = "flatten_transparency"
	CompressImages         = "compress_images"
	ConvertImageColorSpace = "convert_image_colorspace"
	ConvertToPDFA          = "convert_to_pdfa"
	AddTags                = "add_tags"
	SetDocumentLanguage    = "set_document_language"
	SetDocumentTitle       = "set_document_title"
)

// issueTypeToFix is keyed by the lower-cased issue type string.
var issueTypeToFix = map[string]string{
	"structural_errors":        FixStructure,
	"broken_xref":              FixStructure,
	"xref_errors":              FixStructure,
	"corrupt_objects":          FixStructure,
	"missing_metadata":         FixMetadata,
	"invalid_metadata":         FixMetadata,
	"large_file_size":          OptimizeFile,
	"unoptimized_file":         OptimizeFile,
	"javascript_present":       RemoveJavaScript,
	"missing_bleed":            AddBleed,
	"insufficient_bleed":       AddBleed,
	"unembedded_fonts":         EmbedFonts,
	"missing_fonts":            EmbedFonts,
	"font_not_embedded":        EmbedFonts,
	"type3_fonts":              OutlineFonts,
	"rgb_colors":               ConvertToCMYK,
	"rgb_in_print":             ConvertToCMYK,
	"spot_colors":              ConvertSpotColors,
	"missing_output_intent":    AddOutputIntent,
	"missing_icc_profile":      AddOutputIntent,
	"transparency":             FlattenTransparency,
	"unflattened_transparency": FlattenTransparency,
	"oversized_images":         CompressImages,
	"uncompressed_images":      CompressImages,
	"rgb_images":               ConvertImageColorSpace,
	"pdfa_violation":           ConvertToPDFA,
	"not_pdfa_compliant":       ConvertToPDFA,
	"untagged_pdf":             AddTags,
	"missing_tags":             AddTags,
	"missing_language":         SetDocumentLanguage,
	"missing_title":            SetDocumentTitle,
}

var fixToBundle = map[string]Bundle{
	FixStructure:           StructuralBundle,
	FixMetadata:            StructuralBundle,
	OptimizeFile:           StructuralBundle,
	RemoveJavaScript:       StructuralBundle,
	AddBleed:               StructuralBundle,
	EmbedFonts:             FontBundle,
	OutlineFonts:           FontBundle,
	ConvertToCMYK:          ColorBundle,
	ConvertSpotColors:      ColorBundle,
	AddOutputIntent:        ColorBundle,
	FlattenTransparency:    ColorBundle,
	CompressImages:         ImageBundle,
	ConvertImageColorSpace: ImageBundle,
	ConvertToPDFA:          ComplianceBundle,
	AddTags:                ComplianceBundle,
	SetDocumentLanguage:    ComplianceBundle,
	SetDocumentTitle:       ComplianceBundle,
}

// fixToIssueTypes is the reverse index, built once from issueTypeToFix.
var fixToIssueTypes = buildReverseIndex()

func buildReverseIndex() map[string][]string {
	reverse := make(map[string][]string)
	for issueType, fix := range issueTypeToFix {
		reverse[fix] = append(reverse[fix], issueType)
	}
	for fix := range reverse {
		sort.Strings(reverse[fix])
	}
	return reverse
}

func normalizeType(issueType string) string {
	return strings.ToLower(strings.TrimSpace(issueType))
}

// FixForIssueType returns the fix operation for an issue type.
// Unknown types return ("", false).
func FixForIssueType(issueType string) (string, bool) {
	fix, ok := issueTypeToFix[normalizeType(issueType)]
	return fix, ok
}

// IssueTypesForFix returns the issue types a fix operation remediates, sorted.
func IssueTypesForFix(fix string) []string {
	issueTypes := fixToIssueTypes[fix]
	out := make([]string, len(issueTypes))
	copy(out, issueTypes)
	return out
}

// BundleForFix returns the bundle a fix operation belongs to.
func BundleForFix(fix string) (Bundle, bool) {
	b, ok := fixToBundle[fix]
	return b, ok
}

// BundleForIssueType returns the bundle an issue type maps into, if any.
func BundleForIssueType(issueType string) (Bundle, bool) {
	fix, ok := FixForIssueType(issueType)
	if !ok {
		return "", false
	}
	return BundleForFix(fix)
}

// FixesInBundle returns the fix operations of a bundle, sorted.
func FixesInBundle(bundle Bundle) []string {
	var out []string
	for fix, b := range fixToBundle {
		if b == bundle {
			out = append(out, fix)
		}
	}
	sort.Strings(out)
	return out
}

// IsBundleFullyFixable reports whether every issue whose type maps into bundle is
// auto-fixable. It is vacuously true when no issue maps into the bundle.
func IsBundleFullyFixable(issues []types.Issue, bundle Bundle) bool {
	for _, issue := range issues {
		b, ok := BundleForIssueType(issue.Type)
		if !ok || b != bundle {
			continue
		}
		if !issue.AutoFixable {
			return false
		}
	}
	return true
}

// OptionalOptimizations are offered when preflight finds nothing to fix.
func OptionalOptimizations() []string {
	return []string{CompressImages, OptimizeFile}
}
