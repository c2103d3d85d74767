package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/config"
	"github.com/mikey/llm-mail-triage/internal/core"
	"github.com/mikey/llm-mail-triage/internal/factory"
	"github.com/mikey/llm-mail-triage/internal/gateway"
	"github.com/mikey/llm-mail-triage/internal/logging"
	"github.com/mikey/llm-mail-triage/internal/prompt"
	"github.com/mikey/llm-mail-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register typed config sections
	if err := container.Provide(func(cfg *config.Config) (config.GatewayConfig, error) {
		return cfg.GetGateway()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) (config.TriageConfig, error) {
		return cfg.GetTriage()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) (config.PipelineConfig, error) {
		return cfg.GetPipeline()
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}

	// Register completion client
	if err := container.Provide(func(f *factory.LLMFactory) (core.CompletionClient, error) {
		return f.CreateCompletionClient()
	}); err != nil {
		return nil, err
	}

	// Register classification cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.ClassificationCache, error) {
		return f.CreateCache()
	}); err != nil {
		return nil, err
	}

	// Register taxonomy and keyword matcher
	if err := container.Provide(func(triageCfg config.TriageConfig) core.Taxonomy {
		return core.NewTaxonomy(triageCfg.Categories)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(taxonomy core.Taxonomy, triageCfg config.TriageConfig) *core.KeywordMatcher {
		table := make(map[core.Category][]string, len(triageCfg.Keywords))
		for category, keywords := range triageCfg.Keywords {
			table[core.Category(category)] = keywords
		}
		return core.NewKeywordMatcher(taxonomy, table)
	}); err != nil {
		return nil, err
	}

	// Register prompt builder
	if err := container.Provide(func(tp *utils.TextProcessor, triageCfg config.TriageConfig) core.PromptBuilder {
		return prompt.NewBuilder(tp, triageCfg.MaxBodySize)
	}); err != nil {
		return nil, err
	}

	// Register model gateway with its shared breaker
	if err := container.Provide(func(gatewayCfg config.GatewayConfig) *gateway.Breaker {
		return gateway.NewBreaker(gatewayCfg.BreakerThreshold, gatewayCfg.BreakerCooldown)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		client core.CompletionClient,
		breaker *gateway.Breaker,
		logger *zap.Logger,
		gatewayCfg config.GatewayConfig,
	) core.ModelGateway {
		return gateway.New(client, breaker, logger, gateway.Options{
			MaxAttempts:       gatewayCfg.MaxAttempts,
			RequestTimeout:    gatewayCfg.RequestTimeout,
			RateLimitRPS:      gatewayCfg.RateLimitRPS,
			BackoffInitial:    gatewayCfg.BackoffInitial,
			BackoffMax:        gatewayCfg.BackoffMax,
			BackoffJitterFrac: gatewayCfg.BackoffJitterFrac,
		})
	}); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(
		modelGateway core.ModelGateway,
		prompts core.PromptBuilder,
		cacheRepo core.ClassificationCache,
		keywords *core.KeywordMatcher,
		taxonomy core.Taxonomy,
		logger *zap.Logger,
		triageCfg config.TriageConfig,
		cacheFactory *factory.CacheFactory,
	) (*core.Classifier, error) {
		cacheTTL, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		return core.NewClassifier(modelGateway, prompts, cacheRepo, keywords, taxonomy, logger, core.ClassifierOptions{
			ConfidenceThreshold: triageCfg.ConfidenceThreshold,
			FallbackConfidence:  triageCfg.FallbackConfidence,
			CacheEnabled:        cacheFactory.IsCacheEnabled(),
			CacheTTL:            cacheTTL,
		}), nil
	}); err != nil {
		return nil, err
	}

	// Register responder
	if err := container.Provide(func(
		modelGateway core.ModelGateway,
		prompts core.PromptBuilder,
		logger *zap.Logger,
		triageCfg config.TriageConfig,
	) (*core.Responder, error) {
		policies := make(map[core.Category]core.ResponsePolicy, len(triageCfg.Policies))
		for category, policy := range triageCfg.Policies {
			policies[core.Category(category)] = core.ResponsePolicy(policy)
		}
		return core.NewResponder(modelGateway, prompts, policies, nil, logger, core.ResponderOptions{
			MaxResponseChars: triageCfg.MaxResponseChars,
		})
	}); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(func(
		classifier *core.Classifier,
		responder *core.Responder,
		logger *zap.Logger,
		pipelineCfg config.PipelineConfig,
	) *core.Pipeline {
		return core.NewPipeline(classifier, responder, logger, core.PipelineOptions{
			Workers: pipelineCfg.Workers,
		})
	}); err != nil {
		return nil, err
	}

	return container, nil
}
