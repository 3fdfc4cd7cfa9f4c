package repository

import (
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/waveline/crm-services/dispatcher/internal/model"
	"gorm.io/gorm"
)

const channelCacheTTL = time.Minute

type ChannelRepository interface {
	GetByID(orgID, id int64) (*model.Channel, error)
	// Invalidate drops a cached channel after a config change.
	Invalidate(orgID, id int64)
}

// Channel caches reads because the engine resolves the channel on every
// batch and channel config changes are rare.
type Channel struct {
	db    *gorm.DB
	cache *gocache.Cache
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &Channel{
		db:    db,
		cache: gocache.New(channelCacheTTL, 5*time.Minute),
	}
}

func (r *Channel) GetByID(orgID, id int64) (*model.Channel, error) {
	key := cacheKey(orgID, id)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*model.Channel), nil
	}

	var channel model.Channel
	err := r.db.Where("id = ? AND org_id = ?", id, orgID).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}

	r.cache.Set(key, &channel, gocache.DefaultExpiration)

	return &channel, nil
}

func (r *Channel) Invalidate(orgID, id int64) {
	r.cache.Delete(cacheKey(orgID, id))
}

func cacheKey(orgID, id int64) string {
	return fmt.Sprintf("%d:%d", orgID, id)
}
