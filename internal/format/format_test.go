package format

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

var samples = []string{
	"",
	"plain text with nothing to do",
	"## Overview\nBuild an MVP with React and Node.js.\n### Stack\n- Next.js\n- PostgreSQL\n1. Ship\n2. Learn",
	"# Plan\n#### Target Audience\nSocial media and SEO drive growth. Our brand strategy needs analytics.",
	"***Big*** idea\n## Marketing\n1. Campaign\n2. Engagement",
	"/\n├── src/\n│   ├── components/\n│   └── hooks/\n├── public/\n└── package.json",
	"#### Only level four\n- item one\n- item two",
	"line one\r\n## Header\r\n- bullet\r\n",
	"```\n├── api/\n└── README.md\n```",
	"Use an api, a database and a frontend plus backend architecture.",
	"****a****",
	"*****a*****",
	"Mixed ****bold**** and *******wide******* runs",
}

func TestResponse_IdempotentForGuardedPersonas(t *testing.T) {
	for _, id := range []agent.Identity{agent.CTO, agent.CMO, agent.Architect} {
		for _, in := range samples {
			once := Response(in, id)
			twice := Response(once, id)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("%s not idempotent for %q (-once +twice):\n%s", id, in, diff)
			}
		}
	}
}

func TestMarkdown_CollapsesLongEmphasisRuns(t *testing.T) {
	tests := map[string]string{
		"***a***":     "**a**",
		"****a****":   "**a**",
		"*****a*****": "**a**",
	}
	for in, want := range tests {
		if got := Markdown(in); got != want {
			t.Errorf("Markdown(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResponse_CFOExample(t *testing.T) {
	got := Response("## Revenue Streams\nFocus on Pricing.", agent.CFO)
	for _, want := range []string{"💰 Revenue", "💲 Pricing", "🔥 **", "Revenue Streams**"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
	if diff := cmp.Diff("🔥 **💰 Revenue Streams**\nFocus on 💲 Pricing.", got); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestResponse_CFOReprefixesOnEveryPass(t *testing.T) {
	once := Response("Track cost weekly.", agent.CFO)
	if once != "Track 💸 Cost weekly." {
		t.Fatalf("first pass = %q", once)
	}
	twice := Response(once, agent.CFO)
	if twice != "Track 💸 💸 Cost weekly." {
		t.Errorf("second pass = %q", twice)
	}
}

func TestResponse_ArchitectSentinelLeavesInputAlone(t *testing.T) {
	in := "Already has 📂 folder info"
	if got := Response(in, agent.Architect); got != in {
		t.Errorf("got %q, want input unchanged", got)
	}
}

func TestResponse_CMONumberedList(t *testing.T) {
	got := Response("1. Do X\n2. Do Y", agent.CMO)
	if diff := cmp.Diff("1️⃣ Do X\n2️⃣ Do Y", got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestArchitect_WrapsAndDecoratesTree(t *testing.T) {
	in := "/\n├── src/\n├── styles/\n├── docs/\n└── package.json\n└── README.md\n└── .env"
	want := "```\n/\n├── 📂 src/\n├── 🎨 styles/\n├── 📚 docs/\n└── 📦 package.json\n└── 📖 README.md\n└── 🔐 .env\n```"
	if diff := cmp.Diff(want, Architect(in)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestArchitect_KeepsExistingFence(t *testing.T) {
	in := "```\n├── api/\n```"
	want := "```\n├── 🌐 api/\n```"
	if diff := cmp.Diff(want, Architect(in)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCTO_Keywords(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"tech nouns are case-sensitive", "react and React", "react and ⚛️ React"},
		{"whole words only", "Reactive", "Reactive"},
		{"generic terms are caseless", "an api", "an 🌐 API"},
		{"sentinel blocks everything", "## Title 🔷\n- x", "## Title 🔷\n- x"},
		{"vercel and next share an icon", "Next.js on Vercel", "▲ Next.js on ▲ Vercel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, CTO(tt.in)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestCMO_Keywords(t *testing.T) {
	got := CMO("Focus on social media, seo and target audience.")
	want := "Focus on 📱 Social Media, 🔍 SEO and 🎯 Target Audience."
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestMarkdown_Headers(t *testing.T) {
	in := "# One\n## Two\n### Three\n#### Four"
	want := "🚀 **One**\n\n🔥 **Two**\n\n⭐ **Three**\n\n🎯 **Four**"
	if diff := cmp.Diff(want, Markdown(in)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestMarkdown_SentinelSkipsPass(t *testing.T) {
	in := "🚀 launch\n## Next\n- step"
	if got := Markdown(in); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestMarkdown_EmphasisAndBullets(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"triple emphasis", "***bold***", "**bold**"},
		{"dash bullets", "- a\n- b", "• a\n• b"},
		{"asterisk blocks bullets", "- a\n*b*", "- a\n*b*"},
		{"existing bullet glyph blocks bullets", "• a\n- b", "• a\n- b"},
		{"numbered lines", "10. ten\n2. two", "10️⃣ ten\n2️⃣ two"},
		{"existing keycap blocks numbering", "1️⃣ a\n2. b", "1️⃣ a\n2. b"},
		{"empty header left alone", "## ", "## "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Markdown(tt.in)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarkdown_CRLF(t *testing.T) {
	got := Markdown("intro\r\n### Title\r\n- item\r\n")
	want := "intro\r\n\n⭐ **Title**\r\n- item\r\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestResponse_UnknownIdentityGetsGenericPass(t *testing.T) {
	got := Response("## Hi\nReact", agent.Identity("ceo"))
	if diff := cmp.Diff("🔥 **Hi**\nReact", got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
