// Package chat answers free-form customer messages. Cheap canned replies
// handle the common pleasantries; everything else goes to the generative
// service with a grounding block of live inventory and the recent session
// turns, and the response is cached by message text.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thanhph/mobistore/internal/aicache"
	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/vntext"
)

// Bump when a prompt changes so stale cached answers stop being served.
const (
	chatLogicVersion    = "v2"
	compareLogicVersion = "v1"
)

const personaInstruction = `You are the sales assistant for MobileStore, a Vietnamese phone and accessory shop.
Answer in friendly, concise Vietnamese. Recommend only products from the inventory block when one is provided.
Never invent prices or stock levels. If the inventory block has nothing relevant, say so and suggest the customer browse the catalog.`

// busyReply is returned whenever the generative service fails. Transient
// provider errors must never reach the customer as errors.
const busyReply = "Xin lỗi, hệ thống đang bận. Anh/chị vui lòng thử lại sau ít phút nhé!"

// groundingTopK is how many semantic neighbors feed the inventory block.
const groundingTopK = 5

// descriptionLimit truncates long product descriptions in prompts.
const descriptionLimit = 150

// cannedReplies are checked before any AI call, keyed by folded substrings.
// Order matters: the first matching entry wins.
var cannedReplies = []struct {
	markers []string
	reply   string
}{
	{
		markers: []string{"xin chao", "chao shop", "hello", "hi shop"},
		reply:   "Chào anh/chị! MobileStore có thể giúp gì cho mình hôm nay ạ?",
	},
	{
		markers: []string{"dia chi", "o dau", "address"},
		reply:   "Cửa hàng MobileStore ở 123 Lê Lợi, Quận 1, TP. Hồ Chí Minh, mở cửa 8h-21h hằng ngày ạ.",
	},
	{
		markers: []string{"giao hang", "van chuyen", "ship", "delivery"},
		reply:   "MobileStore giao hàng toàn quốc, nội thành trong ngày và miễn phí cho đơn từ 500.000đ ạ.",
	},
}

// Generator produces a free-form completion.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// SemanticSearcher finds product IDs similar to a piece of text.
type SemanticSearcher interface {
	Query(ctx context.Context, text string, topK int) ([]int64, error)
}

// CatalogReader fetches live products for the grounding block.
type CatalogReader interface {
	Filter(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
}

// Service handles chat and comparison requests. gen and index may be nil
// when no AI credentials are configured; the service then answers with
// canned replies and the busy fallback.
type Service struct {
	gen      Generator
	cache    *aicache.Cache
	catalog  CatalogReader
	index    SemanticSearcher
	sessions *SessionStore
}

// NewService assembles a chat Service.
func NewService(gen Generator, cache *aicache.Cache, cat CatalogReader, index SemanticSearcher, sessions *SessionStore) *Service {
	return &Service{gen: gen, cache: cache, catalog: cat, index: index, sessions: sessions}
}

// Answer responds to one customer message. A blank sessionID starts a new
// session; the (possibly new) session ID is returned with the answer.
// Failures of the generative service degrade to a canned busy reply, never
// an error.
func (s *Service) Answer(ctx context.Context, sessionID, message string) (answer, sid string, err error) {
	message = strings.TrimSpace(message)
	if sessionID == "" {
		sessionID = s.sessions.NewSession()
	}

	answer = s.resolveAnswer(ctx, sessionID, message)

	s.sessions.Append(sessionID, Turn{User: message, Assistant: answer})
	return answer, sessionID, nil
}

func (s *Service) resolveAnswer(ctx context.Context, sessionID, message string) string {
	if canned := cannedReply(message); canned != "" {
		return canned
	}
	if s.gen == nil {
		return busyReply
	}

	inventory := s.buildProductContext(ctx, message)
	history := s.sessions.Window(sessionID)

	key := aicache.Key{Op: "chat", Args: []string{message}, Version: chatLogicVersion}
	answer, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
		return s.gen.Generate(ctx, buildChatPrompt(inventory, history, message), personaInstruction)
	})
	if err != nil {
		slog.Warn("chat generation failed", "error", err)
		return busyReply
	}
	if answer == "" {
		return busyReply
	}
	return answer
}

// cannedReply returns the fixed answer for pleasantries, or "".
func cannedReply(message string) string {
	folded := vntext.Fold(strings.ToLower(message))
	for _, c := range cannedReplies {
		for _, marker := range c.markers {
			if strings.Contains(folded, marker) {
				return c.reply
			}
		}
	}
	return ""
}

// buildProductContext renders the inventory block grounding the answer:
// semantic neighbors of the message first, then a literal name match when
// the index has nothing. An empty block is fine, the persona instruction
// tells the model what to do with it.
func (s *Service) buildProductContext(ctx context.Context, message string) string {
	products := s.groundingProducts(ctx, message)
	if len(products) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Tồn kho hiện tại:\n")
	for _, p := range products {
		stock := "còn hàng"
		if p.StockQuantity <= 0 {
			stock = "hết hàng"
		}
		desc := p.Description
		if r := []rune(desc); len(r) > descriptionLimit {
			desc = string(r[:descriptionLimit]) + "..."
		}
		fmt.Fprintf(&b, "- %s (%s): %dđ, %s. %s\n", p.Name, p.Brand, p.EffectivePrice(), stock, desc)
	}
	return b.String()
}

func (s *Service) groundingProducts(ctx context.Context, message string) []catalog.Product {
	if s.index != nil {
		ids, err := s.index.Query(ctx, message, groundingTopK)
		if err != nil {
			slog.Warn("grounding lookup failed", "error", err)
		} else if len(ids) > 0 {
			products, err := s.catalog.Filter(ctx, catalog.Filter{IDs: ids})
			if err == nil && len(products) > 0 {
				return products
			}
			if err != nil {
				slog.Warn("fetching grounding products failed", "error", err)
			}
		}
	}

	products, err := s.catalog.Filter(ctx, catalog.Filter{NameLike: message, Limit: 3})
	if err != nil {
		slog.Warn("literal grounding lookup failed", "error", err)
		return nil
	}
	return products
}

func buildChatPrompt(inventory string, history []Turn, message string) string {
	var b strings.Builder
	if inventory != "" {
		b.WriteString(inventory)
		b.WriteString("\n")
	}
	for _, t := range history {
		fmt.Fprintf(&b, "user: %s\nassistant: %s\n", t.User, t.Assistant)
	}
	fmt.Fprintf(&b, "user: %s\nassistant:", message)
	return b.String()
}

// compareUnavailable stands in when the comparison call fails.
const compareUnavailable = "Hiện chưa thể so sánh hai sản phẩm này, anh/chị vui lòng thử lại sau ạ."

// Compare asks for purchase advice between two products. The answer is
// cached by product names and effective prices, so a price change produces
// fresh advice.
func (s *Service) Compare(ctx context.Context, a, b catalog.Product) string {
	if s.gen == nil {
		return compareUnavailable
	}

	key := aicache.Key{
		Op: "compare",
		Args: []string{
			fmt.Sprintf("%s|%d", a.Name, a.EffectivePrice()),
			fmt.Sprintf("%s|%d", b.Name, b.EffectivePrice()),
		},
		Version: compareLogicVersion,
	}
	advice, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
		return s.gen.Generate(ctx, buildComparePrompt(a, b), personaInstruction)
	})
	if err != nil || advice == "" {
		if err != nil {
			slog.Warn("comparison generation failed", "error", err)
		}
		return compareUnavailable
	}
	return advice
}

func buildComparePrompt(a, b catalog.Product) string {
	return fmt.Sprintf(
		"So sánh hai sản phẩm sau và tư vấn nên mua sản phẩm nào, trả lời ngắn gọn:\n1. %s (%s) - %dđ. %s\n2. %s (%s) - %dđ. %s",
		a.Name, a.Brand, a.EffectivePrice(), a.Description,
		b.Name, b.Brand, b.EffectivePrice(), b.Description,
	)
}
