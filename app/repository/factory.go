package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetWebhookEndpointRepository returns the webhook endpoint repository instance
func (f *Factory) GetWebhookEndpointRepository() WebhookEndpointRepository {
	return f.GetRepositories().WebhookEndpoint
}

// GetSaleRepository returns the sale repository instance
func (f *Factory) GetSaleRepository() SaleRepository {
	return f.GetRepositories().Sale
}

// GetAdAccountConnectionRepository returns the ad account connection repository instance
func (f *Factory) GetAdAccountConnectionRepository() AdAccountConnectionRepository {
	return f.GetRepositories().AdAccountConnection
}

// GetDailyMetricRepository returns the daily metric repository instance
func (f *Factory) GetDailyMetricRepository() DailyMetricRepository {
	return f.GetRepositories().DailyMetric
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
