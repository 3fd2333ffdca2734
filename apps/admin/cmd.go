package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/smkgaleri/galeri/core/user"
	"github.com/smkgaleri/galeri/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword        // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	runMigration func(command string, args ...string) error
	usrSvc       user.ServiceInterface
	validate     *validator.Validate
	out          io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run a goose command (up, down, status, redo, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL -role ROLE      - create a user, the password is prompted next")
	fmt.Fprintln(cli.out, "  resetpassword -login EMAIL|NIS|NIP              - reset a user's password")
	fmt.Fprintln(cli.out, "  importsiswa -file students.csv                  - import unclaimed siswa (columns: nis,name,kelas_id)")
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", string(user.RoleAdmin), "One of: admin, guru, siswa.")
	addUserNIP := addUserCmd.String("nip", "", "The guru's NIP.")
	addUserNIS := addUserCmd.String("nis", "", "The siswa's NIS.")
	addUserJurusan := addUserCmd.String("jurusan", "", "The guru's jurusan ID.")
	addUserKelas := addUserCmd.String("kelas", "", "The siswa's kelas ID.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordLogin := resetPasswordCmd.String("login", "", "The user's email, NIS or NIP. The password will be prompted next.")

	importSiswaCmd := flag.NewFlagSet("importsiswa", flag.ContinueOnError)
	importSiswaCmd.SetOutput(cli.out)
	importSiswaFile := importSiswaCmd.String("file", "", "Path of the CSV file (columns: nis,name,kelas_id).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		_, err = cli.addUser(user.NewUser{
			Name:            *addUserName,
			Email:           *addUserEmail,
			Role:            user.Role(*addUserRole),
			NIP:             *addUserNIP,
			NIS:             *addUserNIS,
			JurusanID:       *addUserJurusan,
			KelasID:         *addUserKelas,
			Password:        pwd,
			PasswordConfirm: pwd,
		})
		return err

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordLogin == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordLogin, pwd)

	case "importsiswa":
		if err := importSiswaCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importSiswaFile == "" {
			importSiswaCmd.Usage()
			return errHelp
		}
		_, err := cli.importSiswa(*importSiswaFile)
		return err

	default:
		cli.printUsage()
		return errHelp
	}
}
