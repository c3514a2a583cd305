package service

import (
	"fmt"
	"strings"
	"text/template"

	"floatai/internal/model"
)

type promptInput struct {
	Input string
}

// applyUserRole 用提示词的用户角色包装文本：含模板动作时以 {{.Input}} 绑定文本执行，
// 否则放在文本前面。
func applyUserRole(role, text string) (string, error) {
	if strings.TrimSpace(role) == "" {
		return text, nil
	}
	if !strings.Contains(role, "{{") {
		return role + "\n\n" + text, nil
	}

	tmpl, err := template.New("user_role").Option("missingkey=error").Parse(role)
	if err != nil {
		return "", validationError("user role template: %v", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, promptInput{Input: text}); err != nil {
		return "", validationError("user role template: %v", err)
	}
	return b.String(), nil
}

// validatePrompt 校验用户角色模板
func validatePrompt(p model.Prompt) error {
	if strings.TrimSpace(p.Name) == "" {
		return validationError("prompt name is required")
	}
	if _, err := applyUserRole(p.UserRole, ""); err != nil {
		return fmt.Errorf("prompt %q: %w", p.Name, err)
	}
	return nil
}
