package world

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/annel0/worldcache/internal/mc"
	"github.com/annel0/worldcache/internal/mc/region"
	"github.com/dgraph-io/badger/v3"
)

var regionKeyPrefix = []byte("region:")

func regionKey(pos mc.RegionPos) []byte {
	return []byte(fmt.Sprintf("region:%d:%d", pos.X, pos.Z))
}

// Store упакованный мир: образы регионов в BadgerDB под ключами region:x:z
type Store struct {
	db *badger.DB
}

// OpenStore открывает или создаёт хранилище в каталоге path
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает хранилище
func (s *Store) Close() error {
	return s.db.Close()
}

// PutRegion сохраняет образ региона
func (s *Store) PutRegion(pos mc.RegionPos, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(regionKey(pos), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения региона %v в BadgerDB: %w", pos, err)
	}
	return nil
}

// Import копирует все регионы каталога в хранилище
func (s *Store) Import(d *Dir) (int, error) {
	n := 0
	for _, pos := range d.Regions() {
		data, err := os.ReadFile(filepath.Join(d.Path(), RegionFileName(pos)))
		if err != nil {
			return n, fmt.Errorf("ошибка чтения региона %v: %w", pos, err)
		}
		if err := s.PutRegion(pos, data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// LoadRegion назначает образ региона в dst. Возвращает false, если региона нет
// или хранилище недоступно.
func (s *Store) LoadRegion(pos mc.RegionPos, dst *region.File) bool {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(regionKey(pos))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return false
	}
	dst.AssignData(pos, data)
	return true
}

// Regions возвращает отсортированный список сохранённых регионов
func (s *Store) Regions() []mc.RegionPos {
	var out []mc.RegionPos
	_ = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: regionKeyPrefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var pos mc.RegionPos
			if _, err := fmt.Sscanf(string(it.Item().Key()), "region:%d:%d", &pos.X, &pos.Z); err != nil {
				continue
			}
			out = append(out, pos)
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].X < out[j].X
	})
	return out
}

// IsStore сообщает, похож ли каталог на хранилище BadgerDB
func IsStore(path string) bool {
	_, err := os.Stat(filepath.Join(path, "MANIFEST"))
	return err == nil
}
