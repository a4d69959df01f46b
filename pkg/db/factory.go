package db

import (
	"context"
	"fmt"
	"sync"
)

// EngineConstructor - функция-конструктор движка.
// Возвращает новый экземпляр движка (еще не подключенный к БД).
type EngineConstructor func() Engine

// Factory - фабрика движков, управляет регистрацией и созданием
// движков по значению ключа database-engine.
type Factory struct {
	registry map[string]EngineConstructor
	mu       sync.RWMutex
}

// NewFactory создает новую фабрику движков
func NewFactory() *Factory {
	return &Factory{
		registry: make(map[string]EngineConstructor),
	}
}

// Register регистрирует конструктор движка для типа БД.
// Обычно вызывается из init() реализации движка:
//
//	func init() {
//	    db.Register("postgres", func() db.Engine {
//	        return &PostgresEngine{}
//	    })
//	}
func (f *Factory) Register(engineType string, constructor EngineConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[engineType] = constructor
}

// Unregister удаляет конструктор движка
func (f *Factory) Unregister(engineType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registry, engineType)
}

// IsRegistered проверяет, зарегистрирован ли движок для данного типа БД
func (f *Factory) IsRegistered(engineType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.registry[engineType]
	return ok
}

// RegisteredTypes возвращает список всех зарегистрированных типов БД
func (f *Factory) RegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for engineType := range f.registry {
		types = append(types, engineType)
	}
	return types
}

// Create создает и подключает движок по конфигурации
func (f *Factory) Create(ctx context.Context, cfg Config) (Engine, error) {
	f.mu.RLock()
	constructor, ok := f.registry[cfg.Engine]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database engine: %s (available: %v)",
			cfg.Engine, f.RegisteredTypes())
	}

	engine := constructor()
	if err := engine.Connect(ctx, cfg); err != nil {
		return nil, &ConnectionError{Engine: cfg.Engine, Err: err}
	}
	return engine, nil
}

// ========== Глобальная фабрика ==========

var globalFactory = NewFactory()

// Register регистрирует движок в глобальной фабрике
func Register(engineType string, constructor EngineConstructor) {
	globalFactory.Register(engineType, constructor)
}

// Unregister удаляет движок из глобальной фабрики
func Unregister(engineType string) {
	globalFactory.Unregister(engineType)
}

// IsRegistered проверяет регистрацию в глобальной фабрике
func IsRegistered(engineType string) bool {
	return globalFactory.IsRegistered(engineType)
}

// New создает движок через глобальную фабрику.
// Это основной способ получения движка в приложении:
//
//	eng, err := db.New(ctx, db.ConfigFromSettings(settings))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
func New(ctx context.Context, cfg Config) (Engine, error) {
	return globalFactory.Create(ctx, cfg)
}

// ========== Реестр движка по умолчанию ==========
//
// Явная замена скрытой ленивой инициализации: движок по умолчанию
// существует только между InitDefault и TeardownDefault.

var (
	defaultMu     sync.RWMutex
	defaultEngine Engine
)

// InitDefault создает движок по умолчанию и сохраняет его в реестре
func InitDefault(ctx context.Context, cfg Config) (Engine, error) {
	eng, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine != nil {
		defaultEngine.Close(ctx)
	}
	defaultEngine = eng
	return eng, nil
}

// Default возвращает движок по умолчанию, если он инициализирован
func Default() (Engine, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultEngine == nil {
		return nil, fmt.Errorf("default engine is not initialized: call db.InitDefault first")
	}
	return defaultEngine, nil
}

// TeardownDefault закрывает и удаляет движок по умолчанию
func TeardownDefault(ctx context.Context) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		return nil
	}
	err := defaultEngine.Close(ctx)
	defaultEngine = nil
	return err
}
