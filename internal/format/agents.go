package format

import (
	"strings"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

const fence = "```"

var (
	architectSentinels = []string{"📂", "🏋️", "💡"}
	ctoSentinels       = []string{"⚛️", "🔷", "🟢"}
	cmoSentinels       = []string{"📱", "🔍", "📊"}
)

var architectRules = Chain{
	literal{"├── src/", "├── 📂 src/"},
	literal{"├── components/", "├── 📂 components/"},
	literal{"├── pages/", "├── 📂 pages/"},
	literal{"├── public/", "├── 📂 public/"},
	literal{"├── lib/", "├── 📂 lib/"},
	literal{"├── utils/", "├── 📂 utils/"},
	literal{"├── styles/", "├── 🎨 styles/"},
	literal{"├── assets/", "├── 🖼️ assets/"},
	literal{"├── hooks/", "├── 🪝 hooks/"},
	literal{"├── types/", "├── 📝 types/"},
	literal{"├── api/", "├── 🌐 api/"},
	literal{"├── docs/", "├── 📚 docs/"},
	literal{"└── package.json", "└── 📦 package.json"},
	literal{"└── README.md", "└── 📖 README.md"},
	literal{"└── .env", "└── 🔐 .env"},
}

// Tech names are case-sensitive; the generic terms are not.
var ctoRules = Chain{
	wordRule("⚛️", "React", false),
	wordRule("▲", "Next.js", false),
	wordRule("🔷", "TypeScript", false),
	wordRule("🟢", "Node.js", false),
	wordRule("🍃", "MongoDB", false),
	wordRule("🐘", "PostgreSQL", false),
	wordRule("🐳", "Docker", false),
	wordRule("☁️", "AWS", false),
	wordRule("▲", "Vercel", false),
	wordRule("🌐", "API", true),
	wordRule("🗄️", "Database", true),
	wordRule("🎨", "Frontend", true),
	wordRule("⚙️", "Backend", true),
	wordRule("🏗️", "Architecture", true),
	wordRule("🚀", "MVP", true),
}

var cmoRules = Chain{
	wordRule("📱", "Social Media", true),
	wordRule("🔍", "SEO", true),
	wordRule("📝", "Content Marketing", true),
	wordRule("📧", "Email Marketing", true),
	wordRule("🌟", "Influencer", true),
	wordRule("📊", "Analytics", true),
	wordRule("🏷️", "Brand", true),
	wordRule("🎯", "Target Audience", true),
	wordRule("📢", "Campaign", true),
	wordRule("🗺️", "Strategy", true),
	wordRule("💬", "Engagement", true),
	wordRule("📈", "Growth", true),
}

// cfoRules match anywhere in a word and have no escape check, so a second
// pass prefixes again.
var cfoRules = Chain{
	substringRule("💰", "Revenue"),
	substringRule("💲", "Pricing"),
	substringRule("💼", "Investment"),
	substringRule("📊", "Budget"),
	substringRule("🏦", "Funding"),
	substringRule("📈", "ROI"),
	substringRule("💸", "Cost"),
	substringRule("💵", "Profit"),
	substringRule("💳", "Financial"),
	substringRule("💱", "Monetization"),
	substringRule("💎", "Valuation"),
	substringRule("💰", "Cash Flow"),
}

// Architect formats a folder-structure reply: generic pass, a code fence
// around the whole reply when none exists, then folder and file icons.
func Architect(text string) string {
	if containsAny(text, architectSentinels) {
		return text
	}
	text = Markdown(text)
	if !strings.Contains(text, fence) {
		text = fence + "\n" + text + "\n" + fence
	}
	return architectRules.Apply(text)
}

func CTO(text string) string {
	if containsAny(text, ctoSentinels) {
		return text
	}
	return ctoRules.Apply(Markdown(text))
}

func CMO(text string) string {
	if containsAny(text, cmoSentinels) {
		return text
	}
	return cmoRules.Apply(Markdown(text))
}

func CFO(text string) string {
	return cfoRules.Apply(Markdown(text))
}

// Response formats text for the advisor that produced it. Unknown
// identities only get the generic pass.
func Response(text string, id agent.Identity) string {
	switch id {
	case agent.Architect:
		return Architect(text)
	case agent.CTO:
		return CTO(text)
	case agent.CMO:
		return CMO(text)
	case agent.CFO:
		return CFO(text)
	default:
		return Markdown(text)
	}
}
