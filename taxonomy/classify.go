package taxonomy

import (
	"regexp"
	"strings"
)

// Classifier 基于关键词的医疗文档分类器。
// 用于为未打标的文本推断 (科室, 文档类型, 疾病分类)，
// 产出的置信度供调用方决定是否采信。
type Classifier struct {
	departmentKeywords map[Department][]string
	doctypeKeywords    map[DocumentType][]string
	diseaseKeywords    map[DiseaseCategory][]string
	diseasePattern     *regexp.Regexp
	drugPattern        *regexp.Regexp
	icdPattern         *regexp.Regexp
}

// Classification 分类结果
type Classification struct {
	Department      Department      `json:"department"`
	DocumentType    DocumentType    `json:"document_type"`
	DiseaseCategory DiseaseCategory `json:"disease_category,omitempty"`
	MedicalTerms    []string        `json:"medical_terms,omitempty"`
	ICDCodes        []string        `json:"icd_codes,omitempty"`
	Confidence      float64         `json:"confidence"`
}

// NewClassifier 创建分类器
func NewClassifier() *Classifier {
	return &Classifier{
		departmentKeywords: map[Department][]string{
			DeptCardiology:       {"心脏", "心血管", "冠心病", "心律", "心肌", "心电图"},
			DeptRespiratory:      {"肺", "呼吸", "气管", "支气管", "肺炎", "哮喘"},
			DeptGastroenterology: {"胃", "肠", "消化", "肝", "胆", "胰腺"},
			DeptNeurology:        {"神经", "脑", "头痛", "癫痫", "中风", "帕金森"},
			DeptOncology:         {"肿瘤", "癌", "化疗", "放疗", "恶性", "良性"},
			DeptEndocrinology:    {"糖尿病", "甲状腺", "内分泌", "激素", "代谢"},
			DeptSurgery:          {"手术", "切除", "缝合", "麻醉", "术后"},
			DeptPediatrics:       {"儿童", "小儿", "婴儿", "新生儿"},
			DeptObGyn:            {"妊娠", "分娩", "产科", "妇科", "子宫"},
			DeptPsychiatry:       {"抑郁", "焦虑", "精神", "心理", "失眠"},
		},
		doctypeKeywords: map[DocumentType][]string{
			DocClinicalGuideline: {"指南", "规范", "共识"},
			DocDiagnosisCriteria: {"诊断标准", "诊断依据", "鉴别诊断"},
			DocTreatmentProtocol: {"治疗方案", "疗程", "治疗原则"},
			DocDrugManual:        {"说明书", "用法", "用量", "副作用", "禁忌"},
			DocCaseStudy:         {"病例", "案例", "病史"},
			DocSurgicalProcedure: {"手术操作", "术式", "手术步骤"},
			DocEmergencyProtocol: {"急救", "抢救", "急诊处理"},
		},
		diseaseKeywords: map[DiseaseCategory][]string{
			DiseaseCirculatory:   {"心脏", "血管", "高血压", "冠心病"},
			DiseaseRespiratory:   {"肺", "呼吸", "哮喘", "肺炎"},
			DiseaseDigestive:     {"胃", "肠", "肝", "消化"},
			DiseaseNervousSystem: {"神经", "脑", "中风", "癫痫"},
			DiseaseNeoplasms:     {"肿瘤", "癌", "恶性", "良性"},
			DiseaseEndocrine:     {"糖尿病", "甲状腺", "代谢", "肥胖"},
			DiseaseInfectious:    {"感染", "病毒", "细菌", "传染"},
			DiseaseMental:        {"抑郁", "焦虑", "精神分裂", "失眠"},
		},
		diseasePattern: regexp.MustCompile(`[\p{Han}]+(?:病|症|炎|癌|瘤|综合征)`),
		drugPattern:    regexp.MustCompile(`[\p{Han}]+(?:片|胶囊|注射液|颗粒|糖浆|软膏|口服液|冲剂)`),
		icdPattern:     regexp.MustCompile(`[A-Z]\d{2}(?:\.\d{1,2})?`),
	}
}

// Classify 对文档标题与正文做关键词分类
func (c *Classifier) Classify(title, content string) Classification {
	text := title + " " + content

	result := Classification{
		Department:      bestMatch(text, c.departmentKeywords),
		DocumentType:    bestMatch(text, c.doctypeKeywords),
		DiseaseCategory: bestMatch(text, c.diseaseKeywords),
		MedicalTerms:    c.extractTerms(text),
		ICDCodes:        c.icdPattern.FindAllString(text, -1),
	}
	result.Confidence = c.confidence(result)
	return result
}

// extractTerms 提取疾病与药物术语（去重，保持出现顺序）
func (c *Classifier) extractTerms(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, m := range append(c.diseasePattern.FindAllString(text, -1), c.drugPattern.FindAllString(text, -1)...) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		terms = append(terms, m)
	}
	return terms
}

func (c *Classifier) confidence(r Classification) float64 {
	score := 0.0
	if len(r.MedicalTerms) > 0 {
		score += min(float64(len(r.MedicalTerms))*0.1, 0.3)
	}
	if len(r.ICDCodes) > 0 {
		score += 0.2
	}
	if r.Department != "" {
		score += 0.2
	}
	if r.DocumentType != "" {
		score += 0.2
	}
	if r.DiseaseCategory != "" {
		score += 0.1
	}
	return min(score, 1.0)
}

// bestMatch 返回命中关键词最多的类别，无命中返回零值
func bestMatch[T ~string](text string, keywords map[T][]string) T {
	var best T
	bestScore := 0
	for category, words := range keywords {
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		// 并列时取字典序较小者，保证结果确定
		if score > bestScore || (score == bestScore && score > 0 && string(category) < string(best)) {
			best = category
			bestScore = score
		}
	}
	return best
}
