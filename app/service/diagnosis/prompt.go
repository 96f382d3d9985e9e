package diagnosis

import (
	"fmt"
	"strings"

	_ "embed"
)

//go:embed prompt_template.txt
var promptTemplate string

func BuildPrompt(text string) string {
	templateValues := map[string]any{
		"text": text,
	}

	prompt := promptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	return prompt
}
