package content

import "quiz-pipeline-service/internal/domain"

// Built-in question banks. The first option is always the correct one here;
// options are shuffled when a quiz is assembled.
var questionBanks = map[domain.Tier][]domain.Question{
	domain.TierEasy: {
		{ID: "e1", Text: "What is money used for?", Options: []string{"To buy things we want and need", "To decorate rooms", "To play games", "Only for adults"}, Explanation: "Money helps us buy both things we need (food, clothes) and things we want (toys, games)!"},
		{ID: "e2", Text: "What is saving?", Options: []string{"Keeping money instead of spending it", "Giving money away", "Losing money", "Making money"}, Explanation: "Saving means putting money aside for the future instead of spending it right away."},
		{ID: "e3", Text: "If you have $15 and spend $6, how much is left?", Options: []string{"$9", "$21", "$6", "$15"}, Explanation: "$15 - $6 = $9. You did the math correctly!"},
		{ID: "e4", Text: "Which is something you NEED?", Options: []string{"Food and shelter", "Video games", "Toys", "Candy"}, Explanation: "Needs are things necessary for living. Wants are things we'd like to have!"},
		{ID: "e5", Text: "What does a piggy bank do?", Options: []string{"Helps you save money", "Feeds animals", "Teaches math", "Makes money"}, Explanation: "A piggy bank is a fun way to collect and save coins!"},
		{ID: "e6", Text: "How much is 2 coins of $5 each?", Options: []string{"$10", "$7", "$3", "$5"}, Explanation: "$5 + $5 = $10. Great counting!"},
		{ID: "e7", Text: "What's a coin?", Options: []string{"A round piece of metal money", "A game", "A chocolate candy", "A type of game token"}, Explanation: "Coins are physical money made from metal. Paper money is called bills!"},
		{ID: "e8", Text: "If your friend gives you $3 and you have $2, how much total?", Options: []string{"$5", "$1", "$3", "$2"}, Explanation: "$2 + $3 = $5. Sharing and adding makes more!"},
	},
	domain.TierMedium: {
		{ID: "m1", Text: "If you save $5 every week for 4 weeks, how much total?", Options: []string{"$20", "$9", "$15", "$5"}, Explanation: "$5 × 4 = $20. Regular saving adds up!"},
		{ID: "m2", Text: "What is a budget?", Options: []string{"A plan for how to spend money", "A type of bank", "A game about money", "A job"}, Explanation: "A budget helps you plan how to use your money wisely."},
		{ID: "m3", Text: "A jacket costs $40. You have $50. How much change?", Options: []string{"$10", "$90", "$40", "$50"}, Explanation: "$50 - $40 = $10. That's your change!"},
		{ID: "m4", Text: "What does interest mean in banking?", Options: []string{"Extra money the bank gives you", "A type of hobby", "Bank rules", "A payment"}, Explanation: "Interest is extra money banks give you for keeping money with them!"},
		{ID: "m5", Text: "If you earn $20 and save half, how much saved?", Options: []string{"$10", "$20", "$30", "$5"}, Explanation: "Half of $20 is $10. Half means divide by 2!"},
		{ID: "m6", Text: "What is the best reason to save money?", Options: []string{"For future needs and goals", "To hide it", "To show friends", "No reason"}, Explanation: "Saving helps you prepare for future expenses and dreams!"},
		{ID: "m7", Text: "A book costs $8. You buy 3 books. Total cost?", Options: []string{"$24", "$11", "$8", "$3"}, Explanation: "$8 × 3 = $24. Multiplication helps with shopping!"},
		{ID: "m8", Text: "What is a debit card?", Options: []string{"A card that uses your own money", "Borrowed money", "Credit card", "A game card"}, Explanation: "Debit cards let you spend money from your own bank account!"},
	},
	domain.TierHard: {
		{ID: "h1", Text: "You earn $100. You save 30%, spend 50%, donate 20%. How much saved?", Options: []string{"$30", "$50", "$20", "$80"}, Explanation: "30% of $100 = $30. Breaking down percentages helps with finances!"},
		{ID: "h2", Text: "If you invest $100 at 10% interest per year, how much after 1 year?", Options: []string{"$110", "$100", "$120", "$90"}, Explanation: "10% of $100 = $10, so $100 + $10 = $110. That's interest at work!"},
		{ID: "h3", Text: "A store offers 20% discount on $50 item. Final price?", Options: []string{"$40", "$70", "$50", "$30"}, Explanation: "20% of $50 = $10, so $50 - $10 = $40. Discounts save money!"},
		{ID: "h4", Text: "What is inflation?", Options: []string{"When prices of things increase over time", "Blowing air", "A type of bank", "Money disappearing"}, Explanation: "Inflation means things cost more money as time passes. Your money buys less!"},
		{ID: "h5", Text: "You need $500 in 5 months. How much to save monthly?", Options: []string{"$100", "$500", "$50", "$250"}, Explanation: "$500 ÷ 5 = $100/month. Planning ahead with math!"},
		{ID: "h6", Text: "What is a credit score?", Options: []string{"A number showing how trustworthy you are with money", "Your total money", "Bank password", "Interest rate"}, Explanation: "Credit scores help banks decide if they'll lend you money. Higher is better!"},
		{ID: "h7", Text: "You spend 60% of income on needs, rest on wants. On $1000 income, wants budget?", Options: []string{"$400", "$600", "$1000", "$200"}, Explanation: "60% on needs = $600, so 40% remains for wants = $400. Balance is important!"},
		{ID: "h8", Text: "What is an emergency fund?", Options: []string{"Money saved for unexpected expenses", "Money for games", "Credit card", "Bank loan"}, Explanation: "Emergency funds protect you when unexpected costs happen. Experts suggest 3-6 months of expenses!"},
	},
}

var hobbyElements = map[string]string{
	"video games": "gaming tournament prize money",
	"drawing":     "art commission earnings",
	"soccer":      "team fundraiser for equipment",
	"reading":     "bookstore discount cards",
	"science":     "science kit to build",
	"music":       "musical instrument to buy",
	"anime":       "anime convention tickets",
	"coding":      "computer upgrade fund",
	"basketball":  "basketball camp registration",
	"art":         "art supplies shopping spree",
	"mathematics": "math competition prizes",
	"lego":        "LEGO set collection goal",
}

const defaultHobbyElement = "personal project funding"

// hobbyElement maps the first recognised hobby to a story goal.
func hobbyElement(hobbies []string) string {
	for _, h := range hobbies {
		if el, ok := hobbyElements[normalizeText(h)]; ok {
			return el
		}
	}
	return defaultHobbyElement
}
