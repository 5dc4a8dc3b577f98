package dialogue

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/radreport/internal/prompts/classify"
)

// FindingUnavailable is the main finding used when the reply cannot be parsed.
const FindingUnavailable = "NA"

var (
	findingPattern  = regexp.MustCompile(`(?s)MAIN FINDING:(.*?)TEMPLATE:`)
	templatePattern = regexp.MustCompile(`TEMPLATE:(.*)`)
)

// Classification is what the model answered to the first-stage prompt.
type Classification struct {
	MainFinding string `json:"main_finding"`
	Template    string `json:"template"`
}

// ExtractClassification pulls the main finding and requested template out of
// a classification reply. The finding may span lines; the template is the
// rest of the first line carrying "TEMPLATE:". When either is missing the
// result is (FindingUnavailable, classify.OwnTemplate) and ok is false.
func ExtractClassification(reply string) (c Classification, ok bool) {
	finding := findingPattern.FindStringSubmatch(reply)
	template := templatePattern.FindStringSubmatch(reply)
	if finding == nil || template == nil {
		return Classification{MainFinding: FindingUnavailable, Template: classify.OwnTemplate}, false
	}
	return Classification{
		MainFinding: strings.TrimSpace(finding[1]),
		Template:    strings.TrimSpace(template[1]),
	}, true
}
