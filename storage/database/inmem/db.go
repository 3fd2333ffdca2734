package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
)

// DB is an in-memory store for tests and the demo mode.
// A single lock guards every table so that multi-table writes (grading a proyek) are atomic.
type DB struct {
	mutex sync.RWMutex

	jurusan   map[string]*akademik.Jurusan
	kelas     map[string]*akademik.Kelas
	user      map[string]*user.User
	proyek    map[string]*proyek.Proyek
	penilaian map[string]*penilaian.Penilaian
}

func Open() *DB {
	return &DB{
		jurusan:   make(map[string]*akademik.Jurusan),
		kelas:     make(map[string]*akademik.Kelas),
		user:      make(map[string]*user.User),
		proyek:    make(map[string]*proyek.Proyek),
		penilaian: make(map[string]*penilaian.Penilaian),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.jurusan = make(map[string]*akademik.Jurusan)
	db.kelas = make(map[string]*akademik.Kelas)
	db.user = make(map[string]*user.User)
	db.proyek = make(map[string]*proyek.Proyek)
	db.penilaian = make(map[string]*penilaian.Penilaian)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// sortBy sorts items with the first ordering whose field less knows about, falling back to the next one on ties.
func sortBy[T any](items []T, ordering []core.DBOrdering, less func(a, b T, field string) (lt, ok bool)) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			ij, ok := less(items[i], items[j], ord.Field)
			if !ok {
				continue
			}
			ji, _ := less(items[j], items[i], ord.Field)
			if !ij && !ji {
				continue // tie
			}
			if ord.Ascending {
				return ij
			}
			return ji
		}
		return false
	})
}
