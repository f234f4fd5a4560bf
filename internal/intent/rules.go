package intent

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/masarif/masarif-backend/internal/model"
)

// FallbackConfidence is the fixed score for rule matches. It sits below the
// skip-confirmation threshold on purpose: a regex match is never "certain",
// so rule-resolved mutations always go through explicit confirmation.
const FallbackConfidence = 0.6

// RuleResolver is the deterministic second stage: ordered bilingual trigger
// sets per intent, each checked independently so a message can mix Arabic
// verbs with English date phrases and still resolve to one coherent intent.
type RuleResolver struct {
	now func() time.Time
}

func NewRuleResolver() *RuleResolver { return &RuleResolver{now: time.Now} }

func (r *RuleResolver) Resolve(_ context.Context, req Request) (model.Resolution, error) {
	// folded keeps the original letter case so extracted account names match
	// the user's stored, case-sensitive names
	folded := arabicFolds.Replace(req.Text)
	text := strings.ToLower(folded)
	kind := detectIntent(text)
	if kind == model.IntentNone {
		return model.Resolution{Intent: model.IntentNone}, nil
	}
	return model.Resolution{
		Intent:     kind,
		Entities:   extractEntities(text, folded, r.now().UTC()),
		Confidence: FallbackConfidence,
	}, nil
}

// ExtractAmount pulls the first numeric token (either script) with an
// optional currency word out of free text. Used for slot-filling replies
// like "50 جنيه" that carry no intent of their own.
func ExtractAmount(text string) (*decimal.Decimal, string) {
	return extractAmount(normalize(text))
}

// ExtractAccountType classifies free text into an account type, or nil when
// no type keyword appears.
func ExtractAccountType(text string) *model.AccountType {
	if tag := classifyKeywords(normalize(text), accountTypeKeywords); tag != "" {
		at := model.AccountType(tag)
		return &at
	}
	return nil
}

// --- text normalization ---

var arabicFolds = strings.NewReplacer(
	// Arabic-Indic and Eastern Arabic-Indic digits
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4", "٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4", "۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٫", ".", "٬", "",
	// hamza/teh-marbuta variants fold so trigger tables stay small
	"أ", "ا", "إ", "ا", "آ", "ا", "ى", "ي", "ة", "ه",
)

func normalize(s string) string {
	return strings.ToLower(arabicFolds.Replace(s))
}

// --- intent detection ---

// intentTriggers is checked in order; the first intent with any matching
// trigger wins. More specific intents are listed before generic ones.
var intentTriggers = []struct {
	kind     model.IntentKind
	triggers []string
}{
	{model.IntentSetDefault, []string{
		"set default", "make default", "default account", "make it default",
		"الافتراضي", "افتراضي", "الحساب الاساسي", "اجعله الاساسي",
	}},
	{model.IntentCreateAccount, []string{
		"create account", "create a new account", "new account", "add account",
		"add an account", "open account", "open a new account",
		"انشئ حساب", "انشاء حساب", "حساب جديد", "افتح حساب", "اضف حساب", "اعمل حساب", "عايز حساب",
	}},
	// income before expense: "got paid" must not hit the expense "paid"
	{model.IntentLogIncome, []string{
		"received", "earned", "got paid", "income of",
		"استلمت", "قبضت", "جالي", "وصلني",
	}},
	{model.IntentLogExpense, []string{
		"spent", "paid", "bought", "purchased",
		"دفعت", "صرفت", "اشتريت", "اتكلفت",
	}},
	{model.IntentViewBalance, []string{
		"balance", "how much do i have", "how much is left",
		"الرصيد", "رصيدي", "كام معايا", "كم معي",
	}},
	{model.IntentViewAccounts, []string{
		"my accounts", "show accounts", "list accounts", "view accounts",
		"حساباتي", "اعرض الحسابات", "الحسابات",
	}},
}

func detectIntent(text string) model.IntentKind {
	for _, it := range intentTriggers {
		for _, trig := range it.triggers {
			if strings.Contains(text, trig) {
				return it.kind
			}
		}
	}
	return model.IntentNone
}

// --- entity extraction ---

func extractEntities(text, folded string, now time.Time) model.Entities {
	var ents model.Entities
	ents.Amount, ents.Currency = extractAmount(text)
	ents.Category = classifyKeywords(text, categoryKeywords)
	if t := classifyKeywords(text, accountTypeKeywords); t != "" {
		at := model.AccountType(t)
		ents.AccountType = &at
	}
	ents.AccountName = extractAccountName(folded)
	ents.OccurredAt = resolveDate(text, now)
	if ents.OccurredAt == nil {
		// no date phrase defaults to "now"
		ents.OccurredAt = &now
	}
	return ents
}

var (
	amountRe   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
	// \b is ASCII-only in RE2 and never fires after Arabic letters, so the
	// trailing boundary is spelled out explicitly
	currencyRe = regexp.MustCompile(`^\s*(egp|usd|eur|sar|aed|le|pounds?|dollars?|جنيهات|جنيه|ج\.م|دولار|ريال|درهم)(?:[^\p{L}]|$)`)
)

// currencyTags maps surface tokens (post-normalization) to ISO-ish codes.
var currencyTags = map[string]string{
	"egp": "EGP", "le": "EGP", "pound": "EGP", "pounds": "EGP",
	"جنيه": "EGP", "جنيهات": "EGP", "ج.م": "EGP",
	"usd": "USD", "dollar": "USD", "dollars": "USD", "دولار": "USD",
	"eur": "EUR",
	"sar": "SAR", "ريال": "SAR",
	"aed": "AED", "درهم": "AED",
}

// extractAmount finds the first numeric token, optionally followed by a
// currency word in either script. First match wins.
func extractAmount(text string) (*decimal.Decimal, string) {
	loc := amountRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, ""
	}
	raw := text[loc[2]:loc[3]]
	// a comma followed by exactly three digits reads as a thousands
	// separator; otherwise it is a decimal mark
	if i := strings.IndexByte(raw, ','); i >= 0 {
		if len(raw)-i-1 == 3 {
			raw = strings.ReplaceAll(raw, ",", "")
		} else {
			raw = strings.ReplaceAll(raw, ",", ".")
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, ""
	}
	currency := ""
	if m := currencyRe.FindStringSubmatch(text[loc[3]:]); m != nil {
		currency = currencyTags[m[1]]
	}
	return &d, currency
}

type keywordSet struct {
	tag   string
	words []string
}

// classifyKeywords returns the tag of the first set containing any keyword.
// Sets are ordered so the more specific ones win ("فودافون كاش" is a wallet,
// not cash).
func classifyKeywords(text string, sets []keywordSet) string {
	for _, set := range sets {
		for _, w := range set.words {
			if strings.Contains(text, w) {
				return set.tag
			}
		}
	}
	return ""
}

var categoryKeywords = []keywordSet{
	{"food", []string{
		"coffee", "lunch", "dinner", "breakfast", "food", "restaurant", "groceries",
		"قهوه", "غدا", "عشا", "فطار", "اكل", "طعام", "مطعم", "سوبر ماركت",
	}},
	{"transport", []string{
		"taxi", "uber", "bus", "metro", "fuel", "gas",
		"تاكسي", "اوبر", "مواصلات", "بنزين", "مترو",
	}},
	{"bills", []string{
		"bill", "bills", "electricity", "internet", "rent",
		"فاتوره", "فواتير", "كهربا", "كهرباء", "انترنت", "نت", "ايجار",
	}},
	{"shopping", []string{
		"shopping", "clothes", "shoes",
		"تسوق", "ملابس", "جزمه",
	}},
	{"health", []string{
		"doctor", "pharmacy", "medicine",
		"دكتور", "صيدليه", "دوا", "علاج",
	}},
	{"salary", []string{
		"salary", "paycheck", "راتب", "مرتب",
	}},
}

var accountTypeKeywords = []keywordSet{
	{string(model.AccountDigitalWallet), []string{
		"wallet", "vodafone", "محفظه", "فودافون",
	}},
	{string(model.AccountCreditCard), []string{
		"credit", "card", "visa", "بطاقه", "ائتمان", "فيزا",
	}},
	{string(model.AccountBank), []string{
		"bank", "بنك",
	}},
	{string(model.AccountCash), []string{
		"cash", "كاش", "نقدي",
	}},
}

var accountNameRe = regexp.MustCompile(`(?i)(?:called|named|باسم|اسمه)\s+"?([\p{L}\d]+)"?`)

func extractAccountName(text string) string {
	if m := accountNameRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// --- relative dates ---

type datePattern struct {
	re      *regexp.Regexp
	resolve func(m []string, now time.Time) time.Time
}

func daysAgo(n int) func([]string, time.Time) time.Time {
	return func(_ []string, now time.Time) time.Time { return now.AddDate(0, 0, -n) }
}

func atHour(dayOffset, hour int) func([]string, time.Time) time.Time {
	return func(_ []string, now time.Time) time.Time {
		d := now.AddDate(0, 0, dayOffset)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, d.Location())
	}
}

func nDaysAgo(m []string, now time.Time) time.Time {
	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
	}
	return now.AddDate(0, 0, -n)
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
	"الاثنين": time.Monday, "الثلاثاء": time.Tuesday, "الاربعاء": time.Wednesday,
	"الخميس": time.Thursday, "الجمعه": time.Friday, "السبت": time.Saturday,
	"الاحد": time.Sunday,
}

// lastWeekday resolves a weekday name to its most recent past occurrence.
func lastWeekday(m []string, now time.Time) time.Time {
	target := weekdayNames[m[1]]
	back := int(now.Weekday()-target+7) % 7
	if back == 0 {
		back = 7
	}
	return now.AddDate(0, 0, -back)
}

// datePatterns are ordered most-specific first; when several phrases appear
// in one utterance the leftmost match wins, with list order breaking ties at
// the same offset. First-match-wins is a deliberate simplification, not a
// linguistic claim.
var datePatterns = []datePattern{
	{regexp.MustCompile(`(\d+)\s+days?\s+ago`), nDaysAgo},
	{regexp.MustCompile(`(?:قبل|من)\s+(\d+)\s+(?:يوم|ايام)`), nDaysAgo},
	{regexp.MustCompile(`last\s+week|الاسبوع الماضي|الاسبوع اللي فات`), daysAgo(7)},
	{regexp.MustCompile(`this\s+morning|الصبح|صباح اليوم`), atHour(0, 9)},
	{regexp.MustCompile(`last\s+night|امبارح بالليل|البارحه`), atHour(-1, 21)},
	{regexp.MustCompile(`yesterday|امبارح|امس`), daysAgo(1)},
	{regexp.MustCompile(`today|tonight|النهارده|اليوم`), daysAgo(0)},
	{regexp.MustCompile(`(monday|tuesday|wednesday|thursday|friday|saturday|sunday|الاثنين|الثلاثاء|الاربعاء|الخميس|الجمعه|السبت|الاحد)`), lastWeekday},
}

func resolveDate(text string, now time.Time) *time.Time {
	best := -1
	var bestT time.Time
	for _, p := range datePatterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			var groups []string
			for i := 0; i*2 < len(loc); i++ {
				if loc[i*2] >= 0 {
					groups = append(groups, text[loc[i*2]:loc[i*2+1]])
				} else {
					groups = append(groups, "")
				}
			}
			bestT = p.resolve(groups, now)
		}
	}
	if best == -1 {
		return nil
	}
	return &bestT
}
