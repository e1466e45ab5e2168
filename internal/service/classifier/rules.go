package classifier

import "regexp"

const doseUnits = `mg|mcg|g|ml|units?|iu|tablets?|capsules?|puffs?|drops?`

var (
	allergyRe = regexp.MustCompile(`(?i)\b(?:allerg\w*|sensitiv\w*|intoleran\w*|adverse\s+reactions?|anaphyla\w*|hives)\b` +
		`|\bcan(?:not|'t|\s+not)\s+take\b.*\bbecause\b`)

	medicationRe = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:` + doseUnits + `)\b` +
		`|\b(?:once|twice|thrice|three\s+times|four\s+times)\s+(?:a\s+|per\s+)?(?:day|daily|week|weekly|month|monthly)\b` +
		`|\b(?:daily|nightly|bid|tid|qid|prn|as\s+needed|every\s+\d+\s+hours?)\b` +
		`|\b(?:taking|takes|took|prescribed|prescription|medications?|treats|treated\s+with|currently\s+on)\b`)

	historyRe = regexp.MustCompile(`(?i)\b(?:history|chronic|diagnosed|diagnosis|surger(?:y|ies)|operation|previous(?:ly)?|prior|past)\b` +
		`|\bfor\s+(?:\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|several|many)\s+(?:years?|decades?)\b` +
		`|\bsince\s+(?:\d{4}|childhood|birth|age\b|(?:\w+\s+)?(?:years?|decades?)\b)`)

	symptomRe = regexp.MustCompile(`(?i)\b(?:symptoms?|complain\w*|pain\w*|ache\w*|headaches?|fevers?|feverish|cough\w*|nause\w*|vomit\w*|dizz\w*|fatigue\w*|tired|weak\w*` +
		`|breath\w*|bleed\w*|swell\w*|swollen|rash\w*|itch\w*|sore|cramp\w*|chills|diarrh\w*|constipat\w*|seizures?|unconscious|injur\w*|numb\w*|palpitations?|hurts?|hurting|discomfort)\b` +
		`|\b(?:difficulty|trouble|hard\s+to|unable\s+to)\b` +
		`|\b(?:worsen\w*|getting\s+worse)\b`)

	severityRe = regexp.MustCompile(`(?i)\b(?:chest\s+pain|breathing\s+difficult\w*|difficulty\s+breathing|short(?:ness)?\s+of\s+breath` +
		`|bleed\w*|unconscious|seizures?|fevers?|severe|extreme|worst|unbearable)\b`)

	complaintRe = regexp.MustCompile(`(?i)\b(?:chief\s+complaint\s*(?:is|was|:)|present(?:ing|s)\s+with|came\s+in\s+for|reason\s+for\s+(?:the\s+)?visit\s*(?:is|was|:))\s*:?\s*([^.!?;\n]+)`)
)
