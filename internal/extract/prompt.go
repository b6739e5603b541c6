package extract

import "strings"

// MaxContentChars caps how much crawled content goes into the prompt.
const MaxContentChars = 100000

const truncationMarker = "\n\n[... content truncated ...]"

const schemaDescription = `{
  "name": "festival name",
  "description": "short description",
  "startDate": "YYYY-MM-DD",
  "endDate": "YYYY-MM-DD",
  "timezone": "IANA timezone if stated",
  "registrationDeadline": "YYYY-MM-DD or null",
  "website": "main website URL",
  "registrationUrl": "registration/ticket URL",
  "email": "contact email",
  "phone": "contact phone",
  "venue": {
    "name": "", "address": "", "city": "", "state": "",
    "country": "", "postalCode": "", "latitude": null, "longitude": null
  },
  "teachers": [{"name": "", "specialties": ["..."]}],
  "musicians": [{"name": "", "genres": ["..."]}],
  "prices": [{"type": "early_bird|regular|late|student|local|vip|donation",
              "amount": 0, "currency": "USD", "deadline": "YYYY-MM-DD or null",
              "description": ""}],
  "tags": ["..."]
}`

// BuildPrompt assembles the structured-extraction prompt from crawled
// content, truncating it at MaxContentChars.
func BuildPrompt(content string) string {
	if len(content) > MaxContentChars {
		content = content[:MaxContentChars] + truncationMarker
	}

	var sb strings.Builder
	sb.WriteString("You are extracting structured data about a dance festival from its website content.\n\n")
	sb.WriteString("Return exactly one JSON object matching this schema. Use null for unknown fields, never invent values:\n\n")
	sb.WriteString(schemaDescription)
	sb.WriteString("\n\nWebsite content:\n\n")
	sb.WriteString(content)
	sb.WriteString("\n\nRespond with the JSON object only.")
	return sb.String()
}
