package analysis

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category is what the presentation layer shows the user.
type Category string

const (
	CategoryConfigurationMissing Category = "configuration_missing"
	CategoryConfigurationInvalid Category = "configuration_invalid"
	CategoryContentBlocked       Category = "content_blocked"
	CategoryAnalysisFailed       Category = "analysis_failed"
)

// Messages is the user-facing catalog, one entry per category.
// AnalysisFailed is a format string receiving the underlying error text.
type Messages struct {
	ConfigurationMissing string `yaml:"configuration_missing"`
	ConfigurationInvalid string `yaml:"configuration_invalid"`
	ContentBlocked       string `yaml:"content_blocked"`
	AnalysisFailed       string `yaml:"analysis_failed"`
	Retry                string `yaml:"retry"`
}

func DefaultMessages() Messages {
	return Messages{
		ConfigurationMissing: "配置错误：未找到 API Key。请在部署环境中设置 VITE_GEMINI_API_KEY 或 GEMINI_API_KEY 并重新部署。",
		ConfigurationInvalid: "配置错误：未找到有效的 API Key，请检查环境变量设置。",
		ContentBlocked:       "照片因包含敏感信息被拦截，请尝试更换照片。",
		AnalysisFailed:       "测算失败: %s",
		Retry:                "可以重新提交相同或更换后的照片再试一次。",
	}
}

// LoadMessages reads a YAML catalog; keys absent from the file keep their defaults.
func LoadMessages(path string) (Messages, error) {
	m := DefaultMessages()
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read messages %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return DefaultMessages(), fmt.Errorf("parse messages %s: %w", path, err)
	}
	if err := checkFailedFormat(m.AnalysisFailed); err != nil {
		return DefaultMessages(), fmt.Errorf("messages %s: analysis_failed: %w", path, err)
	}
	return m, nil
}

// checkFailedFormat requires exactly one %s; %% is the only other verb allowed.
func checkFailedFormat(format string) error {
	verbs := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 == len(format) {
			return errors.New("trailing %")
		}
		i++
		switch format[i] {
		case '%':
		case 's':
			verbs++
		default:
			return fmt.Errorf("unsupported verb %%%c", format[i])
		}
	}
	if verbs != 1 {
		return fmt.Errorf("want exactly one %%s, got %d", verbs)
	}
	return nil
}

// Verdict is the classified form of a pipeline failure.
type Verdict struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Retry    string   `json:"retry,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// Classify maps a failure to its category. It depends only on the failure's
// kind and text, first matching rule wins.
func Classify(err error, msgs Messages) Verdict {
	if err == nil {
		return Verdict{}
	}
	v := Verdict{Retry: msgs.Retry}
	switch KindOf(err) {
	case KindConfigurationMissing:
		v.Category = CategoryConfigurationMissing
		v.Message = msgs.ConfigurationMissing
	case KindConfigurationInvalid:
		v.Category = CategoryConfigurationInvalid
		v.Message = msgs.ConfigurationInvalid
	case KindContentBlocked, KindEmptyResponse:
		v.Category = CategoryContentBlocked
		v.Message = msgs.ContentBlocked
	default:
		v.Category = CategoryAnalysisFailed
		v.Detail = err.Error()
		v.Message = fmt.Sprintf(msgs.AnalysisFailed, v.Detail)
	}
	return v
}
