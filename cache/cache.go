package cache

import (
	"time"

	"github.com/karlseguin/ccache/v3"
)

var DefaultTitleTTL = 1 * time.Hour

type Cache struct {
	Titles TitlesCache
}

func New() *Cache {
	titlesCache := ccache.New(
		ccache.Configure[string]().
			MaxSize(1000).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		Titles: TitlesCache{
			c: titlesCache,
		},
	}
}

// TitlesCache maps a video URL to its resolved title.
type TitlesCache struct {
	c *ccache.Cache[string]
}

func (c *TitlesCache) Get(k string) (string, bool) {
	item := c.c.Get(k)
	if nil == item || item.Expired() {
		return "", false
	}
	return item.Value(), true
}

func (c *TitlesCache) Set(k, title string, ttl time.Duration) {
	c.c.Set(k, title, ttl)
}

func (c *Cache) Close() {
	c.Titles.c.Stop()
}
