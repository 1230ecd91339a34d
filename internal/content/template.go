package content

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"quiz-pipeline-service/internal/domain"
)

const contextPreview = 100

// TemplateGenerator is the always-available backend built on fixed banks
// and story templates.
type TemplateGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewTemplateGenerator seeds option shuffling; seed 0 uses the clock.
func NewTemplateGenerator(seed int64) *TemplateGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TemplateGenerator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *TemplateGenerator) Name() string { return "template" }

func (g *TemplateGenerator) GenerateQuestions(_ context.Context, req QuestionRequest) ([]domain.Question, error) {
	bank := questionBanks[domain.ParseTier(string(req.Difficulty))]
	qs := make([]domain.Question, len(bank))
	for i, q := range bank {
		q.Options = append([]string(nil), q.Options...)
		qs[i] = q
	}
	qs = filterAnswered(qs, req.Exclude)

	g.mu.Lock()
	for i := range qs {
		shuffleOptions(g.rnd, &qs[i])
	}
	g.mu.Unlock()

	if req.Count > 0 && len(qs) > req.Count {
		qs = qs[:req.Count]
	}
	return qs, nil
}

func shuffleOptions(rnd *rand.Rand, q *domain.Question) {
	correct := q.Options[q.CorrectIndex]
	rnd.Shuffle(len(q.Options), func(i, j int) {
		q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
	})
	for i, opt := range q.Options {
		if opt == correct {
			q.CorrectIndex = i
			return
		}
	}
}

func (g *TemplateGenerator) GenerateStory(_ context.Context, req StoryRequest) (string, error) {
	name := req.Profile.Name
	if name == "" {
		name = "Alex"
	}
	age := req.Profile.Age
	if age <= 0 {
		age = 10
	}
	topic := req.Topic
	if topic == "" {
		topic = "money basics"
	}
	element := hobbyElement(req.Profile.HobbyList())

	var story string
	switch domain.ParseTier(string(req.Difficulty)) {
	case domain.TierEasy:
		story = easyStory(name, age, topic, element)
	case domain.TierHard:
		story = hardStory(name, topic, element)
	default:
		story = mediumStory(name, age, topic, element)
	}
	if req.Context != "" {
		story += fmt.Sprintf("\n\n[Based on: %s...]", preview(req.Context, contextPreview))
	}
	return story, nil
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func easyStory(name string, age int, topic, element string) string {
	goal := 20 * float64(age) / 10
	return fmt.Sprintf(`**%[1]s's Money Adventure**

Hi %[1]s! Today, let's learn about **%[2]s** with a fun story!

Imagine %[1]s wants to save money for %[3]s.

**The Challenge:**
You have $10. Your goal is to save enough money in 3 months to buy something special for $%.0[4]f.

**The Story:**
Every week, %[1]s does chores and earns $5. Instead of spending it all on snacks, %[1]s decides to put the money in a special jar.

**Week 1:** $5 saved
**Week 2:** $10 saved (total)
**Week 3:** $15 saved (total)
**Week 4:** $20 saved (total)

**Success!** %[1]s reached the goal and bought the %[3]s!

**What did we learn?**
- Small amounts add up to big goals
- Patience helps us achieve what we want
- Saving is powerful!`, name, topic, element, goal)
}

func mediumStory(name string, age int, topic, element string) string {
	return fmt.Sprintf(`**%[1]s's %[4]s Quest**

Meet %[1]s, a %[2]d-year-old financial explorer!

**The Mission:**
Learn about %[3]s to unlock the treasure of %[5]s.

**Stage 1: Understanding the Concept**
%[1]s discovers that %[3]s is about making smart choices with money.

**Stage 2: The Challenge**
%[1]s has three options:
1. Spend all $50 immediately on video games
2. Save $30 and spend $20 on games now
3. Save all $50 for the ultimate %[5]s

**Stage 3: The Decision**
%[1]s chooses option 3! Here's the plan:
- Save $10 per week for 5 weeks = $50
- Add birthday money ($20) = $70
- Buy the %[5]s + extras!

**Stage 4: The Twist**
Along the way, %[1]s learns:
- How interest can grow savings
- Why goals matter
- The joy of achievement

**The Reward**
After 8 weeks, %[1]s has enough money AND learned valuable lessons about %[3]s!

**The Real Treasure?**
Not just the %[5]s, but the financial skills %[1]s will use forever!`, name, age, topic, titleCase(topic), element)
}

func hardStory(name, topic, element string) string {
	return fmt.Sprintf(`**%[1]s's Advanced %[3]s Simulation**

**Scenario:** %[1]s is starting a small business to fund %[4]s!

**Business Plan:**
Topic: %[2]s
Product/Service: Custom %[4]s (based on your interests)
Target Customers: School friends and family
Timeline: 12 weeks

**Financial Breakdown:**

Initial Investment: $20
- Supplies and materials

Weekly Revenue Targets:
- Week 1-2: $10/week (startup phase)
- Week 3-6: $20/week (growth phase)
- Week 7-12: $30/week (scaling phase)

Total Expected Revenue: $280

Expenses Analysis:
- Cost per item: $3
- Profit margin: 60%%
- Break-even: Week 2

**Advanced Concepts to Explore:**
1. ROI (Return on Investment)
2. Profit Margins
3. Reinvestment Strategy
4. Customer Satisfaction = Repeat Business
5. Scaling challenges

**The Big Picture:**
This isn't just about %[2]s. It's about understanding how money really works in the real world!`, name, topic, titleCase(topic), element)
}
