package drinks

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/coffeeshop/menu-service/common"
)

var (
	drinksBucket = []byte("drinks")
	titlesBucket = []byte("drink_titles")
)

type boltDBStore struct {
	// DB is the underlying BoltDB instance.
	DB *bolt.DB
}

// NewBoltDBStore returns a drink store backed by the BoltDB file at path.
// Drinks are kept in one bucket keyed by id, and a second bucket maps titles
// to ids to enforce uniqueness.
func NewBoltDBStore(path string) (Store, error) {

	// Get realpath if the file already exists
	_, err := os.Stat(path)
	if !os.IsNotExist(err) {
		path, err = common.RealPath(path)
		if err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening BoltDB file %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{drinksBucket, titlesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating BoltDB buckets")
	}
	return &boltDBStore{DB: db}, nil
}

func itob(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (s *boltDBStore) List(ctx context.Context) ([]Drink, error) {
	res := []Drink{}
	err := s.DB.View(func(tx *bolt.Tx) error {
		return tx.Bucket(drinksBucket).ForEach(func(k, v []byte) error {
			var d Drink
			if err := json.Unmarshal(v, &d); err != nil {
				return errors.Wrapf(err, "decoding drink %d", binary.BigEndian.Uint64(k))
			}
			res = append(res, d)
			return nil
		})
	})
	return res, err
}

func (s *boltDBStore) Get(ctx context.Context, id int) (Drink, error) {
	var d Drink
	err := s.DB.View(func(tx *bolt.Tx) error {
		var err error
		d, err = getDrink(tx, id)
		return err
	})
	return d, err
}

func getDrink(tx *bolt.Tx, id int) (Drink, error) {
	var d Drink
	if id <= 0 {
		return d, ErrNotFound
	}
	v := tx.Bucket(drinksBucket).Get(itob(id))
	if v == nil {
		return d, ErrNotFound
	}
	if err := json.Unmarshal(v, &d); err != nil {
		return d, errors.Wrapf(err, "decoding drink %d", id)
	}
	return d, nil
}

func putDrink(tx *bolt.Tx, d Drink) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := tx.Bucket(drinksBucket).Put(itob(d.ID), raw); err != nil {
		return err
	}
	return tx.Bucket(titlesBucket).Put([]byte(d.Title), itob(d.ID))
}

func (s *boltDBStore) Create(ctx context.Context, d Drink) (Drink, error) {
	if err := d.Validate(); err != nil {
		return Drink{}, err
	}
	err := s.DB.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(titlesBucket).Get([]byte(d.Title)) != nil {
			return ErrTitleExists
		}
		seq, err := tx.Bucket(drinksBucket).NextSequence()
		if err != nil {
			return err
		}
		d.ID = int(seq)
		return putDrink(tx, d)
	})
	if err != nil {
		return Drink{}, err
	}
	return d, nil
}

func (s *boltDBStore) Update(ctx context.Context, d Drink) (Drink, error) {
	if err := d.Validate(); err != nil {
		return Drink{}, err
	}
	err := s.DB.Update(func(tx *bolt.Tx) error {
		old, err := getDrink(tx, d.ID)
		if err != nil {
			return err
		}
		if old.Title != d.Title {
			if tx.Bucket(titlesBucket).Get([]byte(d.Title)) != nil {
				return ErrTitleExists
			}
			if err := tx.Bucket(titlesBucket).Delete([]byte(old.Title)); err != nil {
				return err
			}
		}
		return putDrink(tx, d)
	})
	if err != nil {
		return Drink{}, err
	}
	return d, nil
}

func (s *boltDBStore) Delete(ctx context.Context, id int) error {
	return s.DB.Update(func(tx *bolt.Tx) error {
		d, err := getDrink(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(titlesBucket).Delete([]byte(d.Title)); err != nil {
			return err
		}
		return tx.Bucket(drinksBucket).Delete(itob(id))
	})
}

func (s *boltDBStore) Reset(ctx context.Context) error {
	return s.DB.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{drinksBucket, titlesBucket} {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltDBStore) Close() error {
	return s.DB.Close()
}
