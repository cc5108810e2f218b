package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-connect/core/messaging"
)

// addTemplate updates or creates a messaging.Template
func (cli *commandLine) addTemplate(nt messaging.NewTemplate) error {
	if err := nt.Validate(cli.validate); err != nil {
		return err
	}
	tmpl, err := cli.msgRepo.UpdateOrCreateTemplate(context.Background(), messaging.Template{
		Name:       nt.Name,
		ContentSID: nt.ContentSID,
		Body:       nt.Body,
		Language:   nt.Language,
		Category:   nt.Category,
		Status:     nt.Status,
	})
	if err != nil {
		return err
	}
	fmt.Printf("template %q saved (%s, %d variables)\n", tmpl.Name, tmpl.Status, tmpl.Placeholders())
	return nil
}
