// Package validation checks product sets before they are served and
// sanitizes user input for the API.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/interfaces"
	"github.com/giygas/dpd-api/logging"
)

const (
	// maxReportedCodes caps the code lists of a quality report.
	maxReportedCodes = 10

	maxTrademarkLength = 300
)

// Pre-compiled once at package initialization and reused for all validations
var (
	// letters (with French accents, the registry is bilingual), digits and
	// the punctuation found in ingredient names
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'(),/%àâäéèêëïîôöùûüÿçÀÂÄÉÈÊËÏÎÔÖÙÛÜŸÇ]+$`)

	// strings.Contains is much faster than regex for these
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// command injection
		"; ", "| ", "& ", "`", "$(", "${",
		// path traversal
		"../", "..\\", "%2e%2e", "file://",
		// LDAP injection
		"*)(", "*|(", "*)%",
		// NoSQL injection
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateProduct checks if a drug product is valid
func (v *DataValidatorImpl) ValidateProduct(p *entities.DrugProduct) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}

	if p.DrugCode == "" || !isDigits(p.DrugCode) {
		return fmt.Errorf("invalid drug code: %q", p.DrugCode)
	}

	if p.DIN != "" && (!isDigits(p.DIN) || len(p.DIN) > 8) {
		return fmt.Errorf("invalid DIN %q for drug code %s", p.DIN, p.DrugCode)
	}

	if len(p.BrandName) > 200 {
		return fmt.Errorf("brand name too long for drug code %s: %d characters", p.DrugCode, len(p.BrandName))
	}

	if p.UUID == "" {
		return fmt.Errorf("missing uuid for drug code %s", p.DrugCode)
	}

	return nil
}

// ValidateDataIntegrity performs comprehensive data validation
func (v *DataValidatorImpl) ValidateDataIntegrity(products []entities.DrugProduct, clusters []entities.TrademarkCluster) error {
	if len(products) == 0 {
		return fmt.Errorf("no products found")
	}

	codes := make(map[string]bool, len(products))
	for i := range products {
		p := &products[i]
		if codes[p.DrugCode] {
			return fmt.Errorf("duplicate drug code found: %s", p.DrugCode)
		}
		codes[p.DrugCode] = true

		if err := v.ValidateProduct(p); err != nil {
			return fmt.Errorf("invalid product %s: %w", p.DrugCode, err)
		}
	}

	tms := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		if strings.TrimSpace(c.TM) == "" {
			return fmt.Errorf("cluster with empty trademark")
		}
		if tms[c.TM] {
			return fmt.Errorf("duplicate trademark cluster found: %s", c.TM)
		}
		tms[c.TM] = true

		if len(c.Family) == 0 {
			return fmt.Errorf("empty family for trademark %s", c.TM)
		}
		for _, p := range c.Family {
			if !codes[p.DrugCode] {
				return fmt.Errorf("product %s in trademark %s not found in products list", p.DrugCode, c.TM)
			}
		}
	}

	return nil
}

// ReportDataQuality generates a data quality report with all issues found
func (v *DataValidatorImpl) ReportDataQuality(
	products []entities.DrugProduct,
	clusters []entities.TrademarkCluster,
) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicateDINs:                   []string{},
		DuplicateDrugCodes:              []string{},
		ProductsWithoutIngredientsCodes: []string{},
		ProductsWithoutEnrichmentCodes:  []string{},
	}

	codes := make(map[string]bool, len(products))
	dins := make(map[string]int, len(products))
	for _, p := range products {
		if codes[p.DrugCode] {
			report.DuplicateDrugCodes = append(report.DuplicateDrugCodes, p.DrugCode)
		}
		codes[p.DrugCode] = true

		if p.DIN == "" {
			report.ProductsWithoutDIN++
		} else {
			dins[p.DIN]++
			// report a shared DIN once, on its second occurrence
			if dins[p.DIN] == 2 {
				report.DuplicateDINs = append(report.DuplicateDINs, p.DIN)
			}
		}

		if len(p.Ingredients) == 0 {
			report.ProductsWithoutIngredients++
			if len(report.ProductsWithoutIngredientsCodes) < maxReportedCodes {
				report.ProductsWithoutIngredientsCodes = append(report.ProductsWithoutIngredientsCodes, p.DrugCode)
			}
		}

		if p.Enrichment.IsZero() {
			report.ProductsWithoutEnrichment++
			if len(report.ProductsWithoutEnrichmentCodes) < maxReportedCodes {
				report.ProductsWithoutEnrichmentCodes = append(report.ProductsWithoutEnrichmentCodes, p.DrugCode)
			}
		}

		if p.TCATCNumber == "" && p.TCATC == "" {
			report.ProductsWithoutTherapeuticClass++
		}

		if _, ok := p.SingleIngredient(); ok {
			report.SingleIngredientProducts++
		}
	}

	for _, c := range clusters {
		report.ClusteredProducts += len(c.Family)
	}

	return report
}

// LogReport writes a quality report to the log, warning on the issues that
// usually point at a broken extract.
func LogReport(report *interfaces.DataQualityReport) {
	if report == nil {
		return
	}

	if len(report.DuplicateDrugCodes) > 0 {
		logging.Warn("Duplicate drug codes detected",
			"count", len(report.DuplicateDrugCodes),
			"codes", report.DuplicateDrugCodes)
	}
	if report.ProductsWithoutIngredients > 0 {
		logging.Warn("Products without ingredients",
			"count", report.ProductsWithoutIngredients,
			"sample", report.ProductsWithoutIngredientsCodes)
	}

	logging.Info("Data quality report",
		"shared_dins", len(report.DuplicateDINs),
		"without_din", report.ProductsWithoutDIN,
		"without_enrichment", report.ProductsWithoutEnrichment,
		"without_enrichment_sample", report.ProductsWithoutEnrichmentCodes,
		"without_therapeutic_class", report.ProductsWithoutTherapeuticClass,
		"single_ingredient", report.SingleIngredientProducts,
		"clustered", report.ClusteredProducts)
}

// ValidateInput validates user search strings
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) < 3 {
		return fmt.Errorf("input too short: minimum 3 characters")
	}

	if len(input) > 50 {
		return fmt.Errorf("input too long: maximum 50 characters")
	}

	// many short words make the substring search expensive
	words := strings.Fields(input)
	if len(words) > 6 {
		return fmt.Errorf("search query too complex: maximum 6 words allowed")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and common punctuation are allowed")
	}

	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateTrademark checks a trademark path value. Trademarks are matched
// exactly, and verbatim ones can be long or carry any punctuation, so only
// the size and control characters are checked.
func (v *DataValidatorImpl) ValidateTrademark(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("trademark cannot be empty")
	}

	if len(input) > maxTrademarkLength {
		return fmt.Errorf("trademark too long: maximum %d characters", maxTrademarkLength)
	}

	if !utf8.ValidString(input) {
		return fmt.Errorf("trademark is not valid UTF-8")
	}
	for _, r := range input {
		if unicode.IsControl(r) {
			return fmt.Errorf("trademark contains control characters")
		}
	}

	return nil
}

// ValidateDIN validates a Drug Identification Number: exactly 8 digits.
// The result keeps its leading zeros.
func (v *DataValidatorImpl) ValidateDIN(input string) (string, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return "", fmt.Errorf("input cannot be empty")
	}

	if len(input) != len(trimmedInput) || !isDigits(trimmedInput) {
		return "", fmt.Errorf("input contains invalid characters. Only numeric characters are allowed")
	}

	if len(trimmedInput) != 8 {
		return "", fmt.Errorf("DIN should have 8 digits")
	}

	return trimmedInput, nil
}

// ValidateDrugCode validates a registry drug code
func (v *DataValidatorImpl) ValidateDrugCode(input string) (string, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return "", fmt.Errorf("input cannot be empty")
	}

	if len(input) != len(trimmedInput) || !isDigits(trimmedInput) {
		return "", fmt.Errorf("input contains invalid characters. Only numeric characters are allowed")
	}

	if len(trimmedInput) > 10 {
		return "", fmt.Errorf("drug code too long: maximum 10 digits")
	}

	return trimmedInput, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// hasExcessiveRepetition reports the same byte repeated more than 10 times in a row
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
