package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// GraphRepository implements storage.GraphRepository for BadgerDB.
type GraphRepository struct {
	backend *Backend
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) (storage.GraphRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is nil", storage.ErrStorageClosed)
	}
	return &GraphRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *GraphRepository) Close() error {
	return nil
}

// MergeEntities upserts entities by their content-addressed IDs.
func (r *GraphRepository) MergeEntities(ctx context.Context, entities ...*storage.GraphEntity) error {
	if len(entities) == 0 {
		return nil
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, entity := range entities {
			if entity.ID == 0 {
				entity.ID = core.IDFromContent(entity.Tuple())
			}

			stored := *entity
			stored.InsertedAt = now
			stored.UpdatedAt = now

			key := makeGraphEntityKey(entity.ID)
			item, err := tx.Get(key)
			if err == nil {
				var existing *storage.GraphEntity
				err = item.Value(func(val []byte) error {
					existing, err = storage.UnmarshalGraphEntity(val)
					return err
				})
				if err != nil {
					return err
				}
				stored.InsertedAt = existing.InsertedAt
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			value, err := storage.MarshalGraphEntity(&stored)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}

			nameKey := makeGraphNameKey(strings.ToLower(stored.Name), stored.ID)
			if err := tx.Set(nameKey, idBytes(stored.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// MergeRelations upserts relations by their content-addressed IDs.
func (r *GraphRepository) MergeRelations(ctx context.Context, relations ...*storage.GraphRelation) error {
	if len(relations) == 0 {
		return nil
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, relation := range relations {
			if relation.ID == 0 {
				relation.ID = relationID(relation)
			}

			stored := *relation
			key := makeGraphRelKey(relation.ID)

			// Relations are immutable once written; re-merging is a no-op.
			_, err := tx.Get(key)
			if err == nil {
				continue
			}
			if err != badger.ErrKeyNotFound {
				return err
			}

			stored.InsertedAt = now
			value, err := storage.MarshalGraphRelation(&stored)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
			if err := tx.Set(makeGraphRelSrcKey(stored.SourceID, stored.ID), idBytes(stored.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindEntitiesByName returns entities matching any of the given names,
// case-insensitively.
func (r *GraphRepository) FindEntitiesByName(ctx context.Context, names ...string) ([]*storage.GraphEntity, error) {
	entities := []*storage.GraphEntity{}
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, name := range names {
			prefix := makePartialGraphNameKey(strings.ToLower(name))
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)

			for iter.Rewind(); iter.Valid(); iter.Next() {
				var id core.ID
				err := iter.Item().Value(func(val []byte) error {
					id = idFromBytes(val)
					return nil
				})
				if err != nil {
					iter.Close()
					return err
				}
				entity, err := readGraphEntity(tx, id)
				if err != nil {
					iter.Close()
					return err
				}
				entities = append(entities, entity)
			}
			iter.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// RelationsForEntity returns relations whose source is the given entity.
func (r *GraphRepository) RelationsForEntity(ctx context.Context, entityID core.ID) ([]*storage.GraphRelation, error) {
	relations := []*storage.GraphRelation{}
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialGraphRelSrcKey(entityID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				id = idFromBytes(val)
				return nil
			})
			if err != nil {
				return err
			}

			item, err := tx.Get(makeGraphRelKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			var relation *storage.GraphRelation
			err = item.Value(func(val []byte) error {
				relation, err = storage.UnmarshalGraphRelation(val)
				return err
			})
			if err != nil {
				return err
			}
			relations = append(relations, relation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return relations, nil
}

// GetEntity retrieves an entity by ID.
func (r *GraphRepository) GetEntity(ctx context.Context, id core.ID) (*storage.GraphEntity, error) {
	var entity *storage.GraphEntity
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		entity, err = readGraphEntity(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func readGraphEntity(tx *badger.Txn, id core.ID) (*storage.GraphEntity, error) {
	item, err := tx.Get(makeGraphEntityKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: entity %d", storage.ErrNotFound, id)
		}
		return nil, err
	}
	var entity *storage.GraphEntity
	err = item.Value(func(val []byte) error {
		entity, err = storage.UnmarshalGraphEntity(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// relationID derives the content-addressed ID of a relation from its
// endpoints, type and chunk provenance, keeping merges idempotent.
func relationID(relation *storage.GraphRelation) core.ID {
	return core.IDFromContent(fmt.Sprintf("%d|%s|%d|%s",
		relation.SourceID, relation.Type, relation.TargetID, relation.ChunkKey))
}

func idBytes(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func idFromBytes(data []byte) core.ID {
	if len(data) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(data))
}
