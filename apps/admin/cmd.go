package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
	errNoDB = errors.New("migrations need a database: set DATABASE_ENGINE=postgres")
)

type commandLine struct {
	db        *sql.DB // nil with the in-memory database
	usrRepo   user.Repository
	msgRepo   messaging.Repository
	validate  *validator.Validate
	defaultCC string
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-phone PHONE] [-roles ROLE,...] [-admin] - add or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  addtemplate -name NAME -body BODY [-sid CONTENT_SID] [-language LANG] [-category CATEGORY] [-status STATUS] - add or update a WhatsApp template")
	fmt.Println("  migrate COMMAND [ARGS...] - run goose migration commands: up, down, status, version, etc.")
}

// readPassword prompts for a password. Returns errHelp if none was entered.
func readPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func splitRoles(roles string) []string {
	split := make([]string, 0)
	for _, role := range strings.Split(roles, ",") {
		if role = strings.TrimSpace(role); role != "" {
			split = append(split, role)
		}
	}
	return split
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserPhone := addUserCmd.String("phone", "", "The user's WhatsApp phone number.")
	addUserRoles := addUserCmd.String("roles", "", "Comma separated roles, e.g. teacher:,parent:")
	addUserIsAdmin := addUserCmd.Bool("admin", false, "Give the user all the roles. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	addTemplateCmd := flag.NewFlagSet("addtemplate", flag.ContinueOnError)
	addTemplateName := addTemplateCmd.String("name", "", "The template name, e.g. fees_reminder.")
	addTemplateBody := addTemplateCmd.String("body", "", "The template body, with {{1}}, {{2}}... placeholders.")
	addTemplateSID := addTemplateCmd.String("sid", "", "The provider content SID.")
	addTemplateLang := addTemplateCmd.String("language", "en", "The template language.")
	addTemplateCategory := addTemplateCmd.String("category", string(messaging.CategoryUtility), "utility, marketing or authentication.")
	addTemplateStatus := addTemplateCmd.String("status", string(messaging.TemplateApproved), "approved, pending or rejected.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := readPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(userInput{
			name:     *addUserName,
			username: *addUserUname,
			email:    *addUserEmail,
			phone:    *addUserPhone,
			roles:    splitRoles(*addUserRoles),
			isAdmin:  *addUserIsAdmin,
			password: pwd,
		})
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := readPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "addtemplate":
		if err := addTemplateCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addTemplateName == "" || *addTemplateBody == "" {
			addTemplateCmd.Usage()
			return errHelp
		}
		return cli.addTemplate(messaging.NewTemplate{
			Name:       *addTemplateName,
			ContentSID: *addTemplateSID,
			Body:       *addTemplateBody,
			Language:   *addTemplateLang,
			Category:   messaging.TemplateCategory(*addTemplateCategory),
			Status:     messaging.TemplateStatus(*addTemplateStatus),
		})
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
