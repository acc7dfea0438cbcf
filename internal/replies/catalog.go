package replies

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind names one reply template in the catalog.
type Kind string

const (
	KindReminder    Kind = "reminder"
	KindAskAddress  Kind = "ask_address"
	KindReprompt    Kind = "reprompt"
	KindCallbackAck Kind = "callback_ack"
	KindEscalateAck Kind = "escalate_ack"
	KindInfo        Kind = "info"
	KindPaymentSent Kind = "payment_sent"
	KindApology     Kind = "apology"
	KindClosing     Kind = "closing"
)

// Vars are the substitution values available to templates via {name}-style
// placeholders, matching the message format the collection scripts use.
type Vars struct {
	Name    string
	Amount  float64
	DueDate string
}

// Catalog holds per-language reply templates. English is the fallback.
type Catalog struct {
	templates map[string]map[Kind]string
}

func defaults() map[string]map[Kind]string {
	return map[string]map[Kind]string{
		"en": {
			KindReminder:    "Hello {name}, this is a reminder that your installment of {amount} is due on {due_date}. Would you like to pay now, or should we call you back?",
			KindAskAddress:  "Great! Please tell me the email address where I should send your secure payment link.",
			KindReprompt:    "I'm sorry, I didn't quite understand. Could you please repeat that?",
			KindCallbackAck: "Understood. We will call you back at a better time. Thank you.",
			KindEscalateAck: "I understand your concern. Let me connect you with our customer service team.",
			KindInfo:        "Your installment of {amount} is due on {due_date}.",
			KindPaymentSent: "Thank you {name}! A secure payment link for {amount} has been sent to your address.",
			KindApology:     "I'm sorry, something went wrong on our side. Could you please repeat that?",
			KindClosing:     "Thank you for your time. Goodbye.",
		},
		"hi": {
			KindReminder:    "नमस्ते {name}, आपकी {amount} की किस्त {due_date} को देय है। क्या आप अभी भुगतान करना चाहेंगे?",
			KindAskAddress:  "बहुत अच्छा! कृपया वह ईमेल पता बताएं जहां भुगतान लिंक भेजा जाए।",
			KindReprompt:    "क्षमा करें, मैं ठीक से नहीं समझ पाया। कृपया दोहराएं।",
			KindCallbackAck: "ठीक है, हम आपको बाद में कॉल करेंगे। धन्यवाद।",
			KindEscalateAck: "मैं आपकी चिंता समझता हूं। मैं आपको हमारी ग्राहक सेवा टीम से जोड़ता हूं।",
			KindInfo:        "आपकी {amount} की किस्त {due_date} को देय है।",
			KindPaymentSent: "धन्यवाद {name}! {amount} का भुगतान लिंक आपके पते पर भेज दिया गया है।",
			KindApology:     "क्षमा करें, कुछ गड़बड़ हो गई। कृपया दोहराएं।",
			KindClosing:     "आपके समय के लिए धन्यवाद। अलविदा।",
		},
	}
}

func NewCatalog() *Catalog {
	return &Catalog{templates: defaults()}
}

// LoadCatalog builds the default catalog and, when path is non-empty, merges
// overrides from a YAML file keyed language -> kind -> template.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reply catalog: %w", err)
	}

	var overrides map[string]map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse reply catalog: %w", err)
	}

	for lang, kinds := range overrides {
		if c.templates[lang] == nil {
			c.templates[lang] = make(map[Kind]string)
		}
		for kind, tmpl := range kinds {
			c.templates[lang][Kind(kind)] = tmpl
		}
	}
	return c, nil
}

// Render fills the template for the given language and kind, falling back to
// English when the language or template is missing.
func (c *Catalog) Render(lang string, kind Kind, vars Vars) string {
	kinds, ok := c.templates[lang]
	if !ok {
		kinds = c.templates["en"]
	}
	tmpl, ok := kinds[kind]
	if !ok {
		tmpl = c.templates["en"][kind]
	}

	r := strings.NewReplacer(
		"{name}", vars.Name,
		"{amount}", formatAmount(vars.Amount),
		"{due_date}", vars.DueDate,
	)
	return r.Replace(tmpl)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
