// Package composer turns a persona classification into page composition
// and chat prompts for the site.
package composer

import "github.com/kalambet/folio/internal/persona"

// Section is a homepage section the UI can render.
type Section string

const (
	SectionHero           Section = "hero"
	SectionAbout          Section = "about"
	SectionExperience     Section = "experience"
	SectionResume         Section = "resume"
	SectionProjects       Section = "projects"
	SectionCodeSamples    Section = "code_samples"
	SectionArchitecture   Section = "architecture"
	SectionDesignShowcase Section = "design_showcase"
	SectionGames          Section = "games"
	SectionContact        Section = "contact"
)

// SectionOrder returns the homepage sections in the order to show them to
// the given persona. Every ordering contains every section exactly once.
func SectionOrder(p persona.Type) []Section {
	switch p {
	case persona.Recruiter:
		return []Section{SectionHero, SectionExperience, SectionResume, SectionProjects, SectionAbout,
			SectionArchitecture, SectionCodeSamples, SectionDesignShowcase, SectionGames, SectionContact}
	case persona.Engineer:
		return []Section{SectionHero, SectionCodeSamples, SectionProjects, SectionArchitecture, SectionExperience,
			SectionAbout, SectionGames, SectionDesignShowcase, SectionResume, SectionContact}
	case persona.Designer:
		return []Section{SectionHero, SectionDesignShowcase, SectionProjects, SectionGames, SectionAbout,
			SectionExperience, SectionCodeSamples, SectionArchitecture, SectionResume, SectionContact}
	case persona.CTO:
		return []Section{SectionHero, SectionArchitecture, SectionExperience, SectionProjects, SectionCodeSamples,
			SectionAbout, SectionResume, SectionDesignShowcase, SectionGames, SectionContact}
	case persona.Gamer:
		return []Section{SectionHero, SectionGames, SectionDesignShowcase, SectionProjects, SectionCodeSamples,
			SectionAbout, SectionArchitecture, SectionExperience, SectionResume, SectionContact}
	case persona.Curious:
		return defaultOrder()
	}
	return defaultOrder()
}

func defaultOrder() []Section {
	return []Section{SectionHero, SectionAbout, SectionProjects, SectionExperience, SectionCodeSamples,
		SectionDesignShowcase, SectionGames, SectionArchitecture, SectionResume, SectionContact}
}
