package detection

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/menta2k/plant-doctor/pkg/client"
	"github.com/menta2k/plant-doctor/pkg/types"
)

// CachingClassifier memoizes classifier output per image digest so that
// re-submitting the same photo does not hit the hosted endpoint again
type CachingClassifier struct {
	inner client.Classifier
	cache *expirable.LRU[string, []types.Prediction]
}

var _ client.Classifier = (*CachingClassifier)(nil)

// NewCachingClassifier wraps inner with an expiring LRU cache.
// A size <= 0 returns inner unchanged.
func NewCachingClassifier(inner client.Classifier, size int, ttl time.Duration) client.Classifier {
	if size <= 0 || inner == nil {
		return inner
	}
	return &CachingClassifier{
		inner: inner,
		cache: expirable.NewLRU[string, []types.Prediction](size, nil, ttl),
	}
}

func (c *CachingClassifier) Model() string {
	return c.inner.Model()
}

func (c *CachingClassifier) Classify(ctx context.Context, img *types.ImageInput) ([]types.Prediction, error) {
	if img == nil || img.Digest == "" {
		return c.inner.Classify(ctx, img)
	}

	key := c.inner.Model() + "|" + img.Digest
	if preds, ok := c.cache.Get(key); ok {
		return clonePredictions(preds), nil
	}

	preds, err := c.inner.Classify(ctx, img)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, clonePredictions(preds))
	return preds, nil
}

// Len reports the number of cached entries
func (c *CachingClassifier) Len() int {
	return c.cache.Len()
}

func clonePredictions(preds []types.Prediction) []types.Prediction {
	out := make([]types.Prediction, len(preds))
	copy(out, preds)
	return out
}
