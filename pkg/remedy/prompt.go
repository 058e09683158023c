package remedy

import (
	"fmt"
	"strings"
	"text/template"
)

// PromptTemplate is the agricultural consultant prompt sent to the LLM
const PromptTemplate = `You are an expert agricultural consultant specializing in plant diseases.

A plant disease has been detected with the following information:
- Disease Name: {{.DiseaseName}}
- Confidence Level: {{.Confidence}}%

Please provide a comprehensive response in MARKDOWN format with the following sections:

## 📖 Disease Overview
Brief description of this plant disease (2-3 sentences)

## 🔍 Symptoms
Key symptoms to look for (use bullet points with - )

## 🦠 Causes
What causes this disease (use bullet points with - )

## 💊 Treatment Recommendations

### ⚡ Immediate Actions
- List immediate steps to take

### 🌱 Organic/Natural Remedies
- List organic and natural treatment options

### 🧪 Chemical Treatments (if necessary)
- List chemical treatment options

### 🛡️ Preventive Measures
- List preventive measures to avoid future infections

## ⏱️ Recovery Timeline
Expected recovery timeline and what to expect

## 💡 Additional Tips
Any other helpful advice for managing this disease

IMPORTANT: Use proper Markdown formatting:
- Use ## for main sections
- Use ### for subsections
- Use **bold** for emphasis
- Use bullet points with - for lists
- Keep it well-structured and easy to read
`

var promptTmpl = template.Must(template.New("remedy").Parse(PromptTemplate))

type promptData struct {
	DiseaseName string
	Confidence  string
}

// ComposePrompt renders the remedy prompt for a disease label and a
// confidence given in percent
func ComposePrompt(diseaseName string, confidence float64) (string, error) {
	var sb strings.Builder
	err := promptTmpl.Execute(&sb, promptData{
		DiseaseName: diseaseName,
		Confidence:  fmt.Sprintf("%.2f", confidence),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}
