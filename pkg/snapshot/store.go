// Package snapshot persists fetched regions to a local bolt database so a scan can be
// inspected or compared later without reconnecting to the game.
//
// Each snapshot is a named bucket holding the region it covers, the time it was saved and
// one entry per block. Block keys are the little-endian int32 x, y and z of the
// coordinate; values are the little-endian uint32 block id and data value.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
	"github.com/boltdb/bolt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned when no snapshot has the requested name.
	ErrNotFound = errors.New("snapshot not found")

	// ErrIncomplete is returned when the blocks given to Save do not cover the region.
	ErrIncomplete = errors.New("snapshot does not cover region")
)

var (
	rootBucket   = []byte("snapshots")
	blocksBucket = []byte("blocks")
	regionKey    = []byte("region")
	savedAtKey   = []byte("saved_at")
)

// Store is a bolt-backed snapshot database.
type Store struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0666, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot db: %w", err)
	}
	return &Store{
		db:     db,
		logger: log.With().Str("component", "mcpi-snapshot").Str("path", path).Logger(),
	}, nil
}

// Save stores blocks under name, replacing any snapshot with the same name. blocks must
// contain every coordinate of region.
func (s *Store) Save(name string, region world.Region, blocks map[world.Coordinate]world.Block) error {
	if name == "" {
		return fmt.Errorf("snapshot name is required")
	}
	region = region.Normalize()
	if !fitsInt32(region.A) || !fitsInt32(region.B) {
		return fmt.Errorf("%w: %s exceeds int32 coordinates", world.ErrInvalidRegion, region)
	}
	volume, err := region.Volume()
	if err != nil {
		return err
	}
	if len(blocks) != volume {
		return fmt.Errorf("%w: %d blocks for volume %d", ErrIncomplete, len(blocks), volume)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		if root.Bucket([]byte(name)) != nil {
			if err := root.DeleteBucket([]byte(name)); err != nil {
				return err
			}
		}
		bkt, err := root.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		if err := bkt.Put(regionKey, encodeRegion(region)); err != nil {
			return err
		}
		savedAt, _ := time.Now().UTC().MarshalBinary()
		if err := bkt.Put(savedAtKey, savedAt); err != nil {
			return err
		}
		blk, err := bkt.CreateBucket(blocksBucket)
		if err != nil {
			return err
		}
		for _, pos := range region.Partition() {
			b, ok := blocks[pos]
			if !ok {
				return fmt.Errorf("%w: missing %s", ErrIncomplete, pos)
			}
			if err := blk.Put(encodeCoordinate(pos), encodeBlock(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}

	s.logger.Info().
		Str("name", name).
		Str("region", region.String()).
		Int("volume", volume).
		Msg("Snapshot saved")
	return nil
}

// SaveIDs stores block ids without data values.
func (s *Store) SaveIDs(name string, region world.Region, ids map[world.Coordinate]int) error {
	blocks := make(map[world.Coordinate]world.Block, len(ids))
	for pos, id := range ids {
		blocks[pos] = world.Block{ID: id}
	}
	return s.Save(name, region, blocks)
}

// Info describes a stored snapshot.
type Info struct {
	Name    string
	Region  world.Region
	SavedAt time.Time
}

// Stat returns the region and save time of a snapshot.
func (s *Store) Stat(name string) (Info, error) {
	info := Info{Name: name}
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(rootBucket).Bucket([]byte(name))
		if bkt == nil {
			return ErrNotFound
		}
		var err error
		info, err = readInfo(name, bkt)
		return err
	})
	return info, err
}

// Load returns every block of a snapshot.
func (s *Store) Load(name string) (world.Region, map[world.Coordinate]world.Block, error) {
	var (
		region world.Region
		blocks map[world.Coordinate]world.Block
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(rootBucket).Bucket([]byte(name))
		if bkt == nil {
			return ErrNotFound
		}
		info, err := readInfo(name, bkt)
		if err != nil {
			return err
		}
		region = info.Region
		volume, err := region.Volume()
		if err != nil {
			return err
		}
		blocks = make(map[world.Coordinate]world.Block, volume)
		return bkt.Bucket(blocksBucket).ForEach(func(k, v []byte) error {
			pos, err := decodeCoordinate(k)
			if err != nil {
				return err
			}
			if !region.Contains(pos) {
				return fmt.Errorf("block %s outside region %s", pos, region)
			}
			b, err := decodeBlock(v)
			if err != nil {
				return err
			}
			blocks[pos] = b
			return nil
		})
	})
	if err != nil {
		return world.Region{}, nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return region, blocks, nil
}

// RangeBlocks calls f for every block of a snapshot in key order.
func (s *Store) RangeBlocks(name string, f func(pos world.Coordinate, b world.Block)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(rootBucket).Bucket([]byte(name))
		if bkt == nil {
			return ErrNotFound
		}
		iter := bkt.Bucket(blocksBucket).Cursor()
		for k, v := iter.First(); k != nil; k, v = iter.Next() {
			pos, err := decodeCoordinate(k)
			if err != nil {
				return err
			}
			b, err := decodeBlock(v)
			if err != nil {
				return err
			}
			f(pos, b)
		}
		return nil
	})
}

// Names lists the stored snapshots in lexical order.
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	return names, err
}

// Delete removes a snapshot.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(rootBucket).DeleteBucket([]byte(name))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return ErrNotFound
		}
		return err
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func readInfo(name string, bkt *bolt.Bucket) (Info, error) {
	info := Info{Name: name}
	region, err := decodeRegion(bkt.Get(regionKey))
	if err != nil {
		return info, err
	}
	info.Region = region
	if raw := bkt.Get(savedAtKey); raw != nil {
		if err := info.SavedAt.UnmarshalBinary(raw); err != nil {
			return info, fmt.Errorf("bad saved_at: %w", err)
		}
	}
	return info, nil
}

func fitsInt32(c world.Coordinate) bool {
	for _, v := range []int{c.X, c.Y, c.Z} {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return false
		}
	}
	return true
}

func encodeCoordinate(c world.Coordinate) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, [...]int32{int32(c.X), int32(c.Y), int32(c.Z)})
	return buf.Bytes()
}

func decodeCoordinate(b []byte) (world.Coordinate, error) {
	if len(b) != 4*3 {
		return world.Coordinate{}, fmt.Errorf("bad block key length: %d", len(b))
	}
	var arr [3]int32
	binary.Read(bytes.NewReader(b), binary.LittleEndian, &arr)
	return world.Coordinate{X: int(arr[0]), Y: int(arr[1]), Z: int(arr[2])}, nil
}

func encodeRegion(r world.Region) []byte {
	return append(encodeCoordinate(r.A), encodeCoordinate(r.B)...)
}

func decodeRegion(b []byte) (world.Region, error) {
	if len(b) != 4*6 {
		return world.Region{}, fmt.Errorf("bad region length: %d", len(b))
	}
	a, _ := decodeCoordinate(b[:12])
	c, _ := decodeCoordinate(b[12:])
	return world.NewRegion(a, c), nil
}

func encodeBlock(b world.Block) []byte {
	value := make([]byte, 8)
	binary.LittleEndian.PutUint32(value, uint32(b.ID))
	binary.LittleEndian.PutUint32(value[4:], uint32(b.Data))
	return value
}

func decodeBlock(b []byte) (world.Block, error) {
	if len(b) != 8 {
		return world.Block{}, fmt.Errorf("bad block value length: %d", len(b))
	}
	return world.Block{
		ID:   int(int32(binary.LittleEndian.Uint32(b))),
		Data: int(int32(binary.LittleEndian.Uint32(b[4:]))),
	}, nil
}
