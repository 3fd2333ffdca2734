package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/smkgaleri/galeri/core/user"
)

// readSiswaCSV reads nis,name,kelas_id rows; a header row is skipped.
func readSiswaCSV(r io.Reader) ([]user.NewSiswa, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	if len(records) > 0 && strings.EqualFold(strings.TrimSpace(records[0][0]), "nis") {
		records = records[1:]
	}

	rows := make([]user.NewSiswa, 0, len(records))
	for _, rec := range records {
		rows = append(rows, user.NewSiswa{
			NIS:     strings.TrimSpace(rec[0]),
			Name:    strings.TrimSpace(rec[1]),
			KelasID: strings.TrimSpace(rec[2]),
		})
	}
	return rows, nil
}

func (cli *commandLine) importSiswa(path string) ([]user.User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := readSiswaCSV(f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no siswa to import")
	}
	for i := range rows {
		if err = cli.validate.Struct(rows[i]); err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
	}

	users, err := cli.usrSvc.ImportSiswa(context.Background(), rows)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cli.out, "%d siswa imported\n", len(users))
	return users, nil
}
