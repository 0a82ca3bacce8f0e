package chat

import (
	"strings"

	"github.com/hrygo/atlas/internal/profile"
)

// Persona keys of the built-in surfaces.
const (
	PersonaChat       = "chat"
	PersonaNegotiator = "negotiator"
)

// QuickAction is a labeled canned prompt.
type QuickAction struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// Persona parameterizes a chat surface.
type Persona struct {
	Key          string        `json:"key"`
	Title        string        `json:"title"`
	AssistantID  string        `json:"assistant_id"`
	Welcome      string        `json:"-"`
	QuickActions []QuickAction `json:"quick_actions,omitempty"`
}

// WelcomeFor renders the welcome text for the given user name.
func (p Persona) WelcomeFor(userName string) string {
	if userName == "" {
		userName = profile.DefaultUserName
	}
	return strings.ReplaceAll(p.Welcome, "{name}", userName)
}

// Prompt returns the prompt of the quick action with the given label.
func (p Persona) Prompt(label string) (string, bool) {
	for _, qa := range p.QuickActions {
		if qa.Label == label {
			return qa.Prompt, true
		}
	}
	return "", false
}

const chatWelcome = `Olá, {name}! 👋

Estou pronto para te ajudar com dúvidas sobre seguros, crédito, consórcio e processos da cooperativa.

Pode me perguntar qualquer coisa sobre:
• Produtos e serviços
• Estatutos e regulamentos
• Formulários e documentos
• Processos internos

Como posso ajudar hoje?`

const negotiatorWelcome = `Olá, {name}! 💼

Sou seu **Assistente de Negociação**. Estou aqui para te ajudar a fechar mais negócios com argumentos poderosos e estratégias eficazes.

**Como posso potencializar suas vendas hoje?**

🎯 Criar argumentos de venda personalizados
💡 Superar objeções de clientes
📊 Desenvolver estratégias de negociação
🔥 Preparar pitches convincentes`

// Catalog is an ordered set of personas.
type Catalog struct {
	personas []Persona
}

// NewCatalog creates a catalog. Later personas with a duplicate key are dropped.
func NewCatalog(personas ...Persona) *Catalog {
	c := &Catalog{}
	seen := make(map[string]bool, len(personas))
	for _, p := range personas {
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		c.personas = append(c.personas, p)
	}
	return c
}

// DefaultCatalog returns the built-in personas with assistant ids from the profile.
func DefaultCatalog(p *profile.Profile) *Catalog {
	chatID, negotiatorID := profile.DefaultChatAssistantID, profile.DefaultNegotiatorAssistantID
	if p != nil {
		if p.ChatAssistantID != "" {
			chatID = p.ChatAssistantID
		}
		if p.NegotiatorAssistantID != "" {
			negotiatorID = p.NegotiatorAssistantID
		}
	}

	return NewCatalog(
		Persona{
			Key:         PersonaChat,
			Title:       "Assistente Inteligente",
			AssistantID: chatID,
			Welcome:     chatWelcome,
		},
		Persona{
			Key:         PersonaNegotiator,
			Title:       "Negociador",
			AssistantID: negotiatorID,
			Welcome:     negotiatorWelcome,
			QuickActions: []QuickAction{
				{Label: "Argumentos", Prompt: "Me ajude a criar argumentos de venda convincentes para produtos da cooperativa"},
				{Label: "Objeções", Prompt: "Quais são as melhores formas de superar objeções comuns de clientes?"},
				{Label: "Estratégias", Prompt: "Me dê estratégias de negociação para fechar mais vendas"},
				{Label: "Pitch", Prompt: "Crie um pitch de elevador impactante para nossos produtos"},
			},
		},
	)
}

// Get returns the persona with the given key.
func (c *Catalog) Get(key string) (Persona, bool) {
	for _, p := range c.personas {
		if p.Key == key {
			return p, true
		}
	}
	return Persona{}, false
}

// List returns all personas in catalog order.
func (c *Catalog) List() []Persona {
	out := make([]Persona, len(c.personas))
	copy(out, c.personas)
	return out
}
