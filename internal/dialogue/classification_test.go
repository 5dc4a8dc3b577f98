package dialogue

import (
	"testing"

	"github.com/jackzampolin/radreport/internal/prompts/classify"
)

func TestExtractClassification(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		want   Classification
		wantOK bool
	}{
		{
			name:   "well formed",
			reply:  "MAIN FINDING: Acute appendicitis\nTEMPLATE: CT ABDOMEN PELVIS",
			want:   Classification{MainFinding: "Acute appendicitis", Template: "CT ABDOMEN PELVIS"},
			wantOK: true,
		},
		{
			name:   "finding spans lines",
			reply:  "MAIN FINDING: Right lower lobe\nconsolidation\nTEMPLATE: X-RAY CHEST\n",
			want:   Classification{MainFinding: "Right lower lobe\nconsolidation", Template: "X-RAY CHEST"},
			wantOK: true,
		},
		{
			name:   "template stops at end of line",
			reply:  "MAIN FINDING: Normal\nTEMPLATE: MRI BRAIN\nLet me know if you need anything else.",
			want:   Classification{MainFinding: "Normal", Template: "MRI BRAIN"},
			wantOK: true,
		},
		{
			name:   "surrounding chatter",
			reply:  "Sure! Here you go.\nMAIN FINDING:   Pneumothorax  \nTEMPLATE:   CT CHEST  ",
			want:   Classification{MainFinding: "Pneumothorax", Template: "CT CHEST"},
			wantOK: true,
		},
		{
			name:   "own template",
			reply:  "MAIN FINDING: Fracture\nTEMPLATE: OWN",
			want:   Classification{MainFinding: "Fracture", Template: "OWN"},
			wantOK: true,
		},
		{
			name:   "not a report marker",
			reply:  "MAIN FINDING: ...\nTEMPLATE: ...",
			want:   Classification{MainFinding: "...", Template: "..."},
			wantOK: true,
		},
		{
			name:  "missing template label",
			reply: "MAIN FINDING: Pneumothorax",
			want:  Classification{MainFinding: FindingUnavailable, Template: classify.OwnTemplate},
		},
		{
			name:  "template before finding",
			reply: "TEMPLATE: CT CHEST\nMAIN FINDING: Pneumothorax",
			want:  Classification{MainFinding: FindingUnavailable, Template: classify.OwnTemplate},
		},
		{
			name:  "no labels",
			reply: "I am unable to help with that.",
			want:  Classification{MainFinding: FindingUnavailable, Template: classify.OwnTemplate},
		},
		{
			name:  "lowercase labels",
			reply: "main finding: x\ntemplate: CT CHEST",
			want:  Classification{MainFinding: FindingUnavailable, Template: classify.OwnTemplate},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractClassification(tc.reply)
			if ok != tc.wantOK {
				t.Errorf("ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Errorf("ExtractClassification() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
