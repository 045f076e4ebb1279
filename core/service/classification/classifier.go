package classification

import (
	"context"
	"strings"
	"time"

	"mailbrief/core/domain"
)

// categoryKeywords holds the fixed per-category keyword sets used by the
// keyword fallback layer, probed in this order. Grounded on
// original_source/services/classification_service.py's category_keywords
// table — general carries no keywords and is reached only as the final
// default.
var categoryKeywords = []struct {
	category domain.Category
	keywords []string
}{
	{domain.CategoryWork, []string{"工作", "work", "项目", "project", "任务", "task", "会议", "meeting", "报告", "report"}},
	{domain.CategoryFinance, []string{"账单", "bill", "付款", "payment", "银行", "bank", "财务", "finance", "发票", "invoice"}},
	{domain.CategorySocial, []string{"朋友", "friend", "社交", "social", "聚会", "party", "生日", "birthday"}},
	{domain.CategoryShopping, []string{"订单", "order", "购买", "purchase", "商品", "product", "快递", "delivery", "物流", "shipping"}},
	{domain.CategoryNews, []string{"新闻", "news", "资讯", "information", "更新", "update", "订阅", "newsletter"}},
	{domain.CategoryEducation, []string{"课程", "course", "培训", "training", "学习", "study", "教育", "education", "考试", "exam"}},
	{domain.CategoryTravel, []string{"机票", "flight", "酒店", "hotel", "旅行", "travel", "行程", "itinerary", "签证", "visa"}},
	{domain.CategoryHealth, []string{"医院", "hospital", "体检", "checkup", "健康", "health", "医疗", "medical", "药品", "medicine"}},
	{domain.CategorySystem, []string{"验证码", "code", "密码", "password", "账号", "account", "注册", "register", "通知", "notification"}},
	{domain.CategoryAdvertising, []string{"广告", "ad", "推广", "promotion", "营销", "marketing", "促销", "优惠", "discount", "折扣", "sale", "特价", "限时", "秒杀", "活动", "campaign", "offer", "deal"}},
	{domain.CategorySpam, []string{"中奖", "prize", "恭喜", "congratulations", "免费领取", "free gift", "点击领取", "click here", "立即查看", "view now", "紧急", "urgent", "重要通知", "账号异常", "验证身份", "verify account", "suspended", "unusual activity"}},
}

var highImportanceKeywords = []string{
	"urgent", "紧急", "重要", "important", "急", "立即", "asap",
	"截止", "deadline", "会议", "meeting", "面试", "interview",
}

var mediumImportanceKeywords = []string{
	"通知", "notice", "公告", "announcement", "更新", "update",
	"邀请", "invitation", "确认", "confirmation",
}

const bodyScratchLen = 500

// RuleRepository is the narrow slice of Store the classifier needs: a
// user's active rules, and the ability to record a rule hit.
type RuleRepository interface {
	ListActiveRules(ctx context.Context, userID int64) ([]*domain.ClassificationRule, error)
	IncrementRuleMatch(ctx context.Context, ruleID int64, at time.Time) error
}

// Classifier implements the four-layer decision of §4.3.2.
type Classifier struct {
	rules RuleRepository
	now   func() time.Time
}

// NewClassifier builds a Classifier backed by a rule repository.
func NewClassifier(rules RuleRepository) *Classifier {
	return &Classifier{rules: rules, now: time.Now}
}

// Result is the classifier's output: the tag triple assigned to an email.
type Result struct {
	Category   domain.Category
	Importance int
	Method     domain.ClassificationMethod
}

// Classify runs the four layers in order for one email and returns the
// first layer that produces a result.
func (c *Classifier) Classify(ctx context.Context, userID int64, sender, subject, body string) (Result, error) {
	rules, err := c.rules.ListActiveRules(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	matcher := NewRuleMatcher(rules)
	if best := matcher.Best(sender, subject, body); best != nil {
		if err := c.rules.IncrementRuleMatch(ctx, best.ID, c.now()); err != nil {
			return Result{}, err
		}
		return Result{
			Category:   best.TargetCategory,
			Importance: best.TargetImportance,
			Method:     domain.ClassificationRule,
		}, nil
	}

	// Layer 2 (AI) is reserved; always skipped in the current scope.

	if cat, imp, ok := classifyByKeyword(sender, subject, body); ok {
		return Result{Category: cat, Importance: imp, Method: domain.ClassificationKeyword}, nil
	}

	return Result{Category: domain.CategoryGeneral, Importance: 1, Method: domain.ClassificationDefault}, nil
}

func classifyByKeyword(sender, subject, body string) (domain.Category, int, bool) {
	if len(body) > bodyScratchLen {
		body = body[:bodyScratchLen]
	}
	scratch := strings.ToLower(subject + " " + sender + " " + body)

	importance := 1
	if containsAny(scratch, highImportanceKeywords) {
		importance = 3
	} else if containsAny(scratch, mediumImportanceKeywords) {
		importance = 2
	}

	for _, entry := range categoryKeywords {
		if containsAny(scratch, entry.keywords) {
			return entry.category, importance, true
		}
	}

	return domain.CategoryGeneral, importance, false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
